package playback

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nisalabs/nisa-core/internal/bus"
	"github.com/nisalabs/nisa-core/internal/protocol"
)

// BusSink hands synthesized audio to whatever playback surface is listening
// on the bus. Publishing is the whole handoff: the daemon does not track
// playback progress, and a new publish supersedes the previous clip.
type BusSink struct {
	bus       *bus.Client
	sessionID string
	logger    *slog.Logger
}

func NewBusSink(busClient *bus.Client, sessionID string, logger *slog.Logger) *BusSink {
	return &BusSink{
		bus:       busClient,
		sessionID: sessionID,
		logger:    logger.With(slog.String("component", "playback")),
	}
}

func (s *BusSink) Play(ctx context.Context, audio []byte, mime string) error {
	evt := protocol.PlaybackAudio{
		SessionID: s.sessionID,
		Audio:     audio,
		MIME:      mime,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := s.bus.Conn().Publish(protocol.SubjectPlaybackAudio, data); err != nil {
		return err
	}
	s.logger.Debug("handed audio to playback",
		slog.Int("bytes", len(audio)),
		slog.String("mime", mime))
	return nil
}
