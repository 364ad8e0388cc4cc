package journal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/nisalabs/nisa-core/internal/config"
	"github.com/nisalabs/nisa-core/internal/conversation"
	"github.com/nisalabs/nisa-core/internal/emotion"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeralRecordsNothing(t *testing.T) {
	ctx := context.Background()
	cfg := config.JournalConfig{RetentionMode: "ephemeral"}
	js, err := Open(ctx, cfg, "session-1", newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = js.Close() })

	if err := js.Record(ctx, conversation.Turn{Speaker: conversation.SpeakerUser, Text: "hi"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	entries, err := js.ListTurns(ctx, "session-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("ephemeral journal must keep nothing, got %d entries", len(entries))
	}
}

func TestRecordAndList(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JournalConfig{Path: filepath.Join(tmp, "journal.db"), RetentionMode: "session"}
	js, err := Open(context.Background(), cfg, "session-1", newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = js.Close() })

	ctx := context.Background()
	if err := js.Record(ctx, conversation.Turn{Speaker: conversation.SpeakerUser, Text: "hello"}); err != nil {
		t.Fatalf("record user: %v", err)
	}
	if err := js.Record(ctx, conversation.Turn{Speaker: conversation.SpeakerBot, Text: "hi there", Emotion: emotion.Happy}); err != nil {
		t.Fatalf("record bot: %v", err)
	}

	entries, err := js.ListTurns(ctx, "session-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "hello" || entries[0].Speaker != "user" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Emotion != "happy" {
		t.Fatalf("unexpected emotion %q", entries[1].Emotion)
	}
}

func TestMaxTurnsDropsOldest(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JournalConfig{Path: filepath.Join(tmp, "journal.db"), RetentionMode: "session", MaxTurns: 3}
	js, err := Open(context.Background(), cfg, "session-1", newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = js.Close() })

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		turn := conversation.Turn{Speaker: conversation.SpeakerUser, Text: fmt.Sprintf("turn %d", i)}
		if err := js.Record(ctx, turn); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	entries, err := js.ListTurns(ctx, "session-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected cap of 3 entries, got %d", len(entries))
	}
	if entries[0].Text != "turn 2" {
		t.Fatalf("expected oldest surviving entry to be turn 2, got %q", entries[0].Text)
	}
}
