package protocol

import "time"

// AudioFrame carries PCM microphone data from an input surface.
type AudioFrame struct {
	SessionID  string `json:"session_id"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
}

// CaptureToggle flips the microphone between inactive and listening.
type CaptureToggle struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// UtteranceSubmitted asks the orchestrator to run one conversational turn.
type UtteranceSubmitted struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Origin    string    `json:"origin"` // typed or spoken
	Timestamp time.Time `json:"timestamp"`
}

// TurnAppended announces a new entry in the conversation log.
type TurnAppended struct {
	SessionID string    `json:"session_id"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Emotion   string    `json:"emotion"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusChanged announces an orchestrator state transition for the current turn.
type StatusChanged struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// PlaybackAudio hands synthesized reply audio to the playback surface. A new
// handoff supersedes any prior one.
type PlaybackAudio struct {
	SessionID string    `json:"session_id"`
	Audio     []byte    `json:"audio"`
	MIME      string    `json:"mime"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectAudioFramePrefix   = "audio.frame"
	SubjectCaptureToggle      = "capture.toggle"
	SubjectUtteranceSubmitted = "utterance.submitted"
	SubjectTurnAppended       = "conversation.turn"
	SubjectStatusChanged      = "orchestrator.status"
	SubjectPlaybackAudio      = "playback.audio"
)
