package kafkax

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

type stubDeduper struct {
	firstSeen bool
	recordErr error

	recorded []string
	removed  []string
}

func (s *stubDeduper) Record(_ context.Context, eventID, _ string) (bool, error) {
	s.recorded = append(s.recorded, eventID)
	if s.recordErr != nil {
		return false, s.recordErr
	}
	return s.firstSeen, nil
}

func (s *stubDeduper) Remove(_ context.Context, eventID string) error {
	s.removed = append(s.removed, eventID)
	return nil
}

func testMessage() kafka.Message {
	return kafka.Message{
		Topic: "booking.appointment.reserved.v1",
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte("evt-1")},
			{Key: "event_type", Value: []byte("booking.appointment.reserved.v1")},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessCommitsAfterSuccess(t *testing.T) {
	dedupe := &stubDeduper{firstSeen: true}
	handled := 0
	c := &Consumer{
		logger: discardLogger(),
		dedupe: dedupe,
		handler: func(context.Context, kafka.Message) error {
			handled++
			return nil
		},
	}

	if !c.process(context.Background(), testMessage()) {
		t.Fatal("expected commit after successful handling")
	}
	if handled != 1 {
		t.Fatalf("handler called %d times, want 1", handled)
	}
	if len(dedupe.removed) != 0 {
		t.Fatalf("inbox row removed after success: %v", dedupe.removed)
	}
}

func TestProcessSkipsDuplicateButCommits(t *testing.T) {
	dedupe := &stubDeduper{firstSeen: false}
	c := &Consumer{
		logger: discardLogger(),
		dedupe: dedupe,
		handler: func(context.Context, kafka.Message) error {
			t.Fatal("handler must not run for a duplicate")
			return nil
		},
	}

	if !c.process(context.Background(), testMessage()) {
		t.Fatal("duplicate must still advance the offset")
	}
}

func TestProcessReleasesInboxRowOnHandlerFailure(t *testing.T) {
	dedupe := &stubDeduper{firstSeen: true}
	c := &Consumer{
		logger: discardLogger(),
		dedupe: dedupe,
		handler: func(context.Context, kafka.Message) error {
			return errors.New("replica unavailable")
		},
	}

	if c.process(context.Background(), testMessage()) {
		t.Fatal("offset must not be committed when the handler fails")
	}
	if len(dedupe.removed) != 1 || dedupe.removed[0] != "evt-1" {
		t.Fatalf("inbox row not released for retry: %v", dedupe.removed)
	}
}

func TestProcessDoesNotCommitOnRecordError(t *testing.T) {
	dedupe := &stubDeduper{recordErr: errors.New("db down")}
	c := &Consumer{
		logger: discardLogger(),
		dedupe: dedupe,
		handler: func(context.Context, kafka.Message) error {
			t.Fatal("handler must not run when dedupe recording fails")
			return nil
		},
	}

	if c.process(context.Background(), testMessage()) {
		t.Fatal("offset must not be committed when dedupe recording fails")
	}
	if len(dedupe.removed) != 0 {
		t.Fatalf("unexpected inbox removal: %v", dedupe.removed)
	}
}
