package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestHandleEventReconcileLine(t *testing.T) {
	ev := Event{
		Type:        TypeReconcileRequired,
		OccurredAt:  time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC),
		UserID:      3,
		PlaceID:     9,
		ExternalID:  "pi_123",
		AmountCents: 10000,
		Operation:   "activation",
		Error:       "commit failed",
	}
	body, _ := json.Marshal(ev)
	var buf bytes.Buffer
	if err := HandleEvent(body, &buf); err != nil {
		t.Fatal(err)
	}
	line := buf.String()
	for _, want := range []string{"[2025-07-15T10:00:00Z] RECONCILE", "op=activation", "stripe_id=pi_123", "amount=10000 cents"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("line must end with newline")
	}
}

func TestHandleEventRejectsGarbage(t *testing.T) {
	var buf bytes.Buffer
	if err := HandleEvent([]byte("{"), &buf); err == nil {
		t.Fatal("want unmarshal error")
	}
	if err := HandleEvent([]byte(`{"id_lugar":1}`), &buf); err == nil {
		t.Fatal("want error for missing type")
	}
	if buf.Len() != 0 {
		t.Fatal("nothing should be written")
	}
}

func TestNilPublisherDrops(t *testing.T) {
	var p *Publisher
	if err := p.Publish(context.Background(), Event{Type: TypeUserBlocked}); err != nil {
		t.Fatal(err)
	}
	p = &Publisher{}
	if err := p.Publish(context.Background(), Event{Type: TypeUserBlocked}); err != nil {
		t.Fatal(err)
	}
}
