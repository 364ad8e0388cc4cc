package conversation

import (
	"sync"
	"time"

	"github.com/nisalabs/nisa-core/internal/emotion"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Origin records how an utterance entered the system.
type Origin string

const (
	OriginTyped  Origin = "typed"
	OriginSpoken Origin = "spoken"
)

// Utterance is a user-submitted text payload. It is created on submission
// and consumed once by the orchestrator.
type Utterance struct {
	Text   string
	Origin Origin
}

// Turn is one message in the conversation log. A bot turn carries the emotion
// tag attached when the reply was classified; user turns are always Neutral.
type Turn struct {
	Speaker   Speaker
	Text      string
	Emotion   emotion.Tag
	CreatedAt time.Time
}

// Log is the ordered, append-only record of a session's turns. The
// orchestrator is the sole writer; the rendering surface reads snapshots.
// Turns are never removed or reordered, and a turn is never mutated after
// append.
type Log struct {
	mu    sync.RWMutex
	turns []Turn

	clock func() time.Time
}

func NewLog() *Log {
	return &Log{clock: time.Now}
}

// AppendUser appends a user turn and returns it.
func (l *Log) AppendUser(text string) Turn {
	return l.append(Turn{Speaker: SpeakerUser, Text: text, Emotion: emotion.Neutral})
}

// AppendBot appends a bot turn with its emotion tag and returns it.
func (l *Log) AppendBot(text string, tag emotion.Tag) Turn {
	return l.append(Turn{Speaker: SpeakerBot, Text: text, Emotion: tag})
}

func (l *Log) append(turn Turn) Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	turn.CreatedAt = l.clock().UTC()
	l.turns = append(l.turns, turn)
	return turn
}

// Turns returns a point-in-time copy of the log in creation order.
func (l *Log) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	turns := make([]Turn, len(l.turns))
	copy(turns, l.turns)
	return turns
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}
