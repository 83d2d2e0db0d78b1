package events_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dalemusser/alumnihub/internal/app/system/events"
)

func TestMemoryBus_DeliversInOrder(t *testing.T) {
	bus := events.NewMemoryBus()
	defer bus.Close()

	var got []string
	sub, err := bus.Subscribe(events.ChatSubject("default-room"), func(_ string, data []byte) {
		var m struct{ Text string }
		_ = json.Unmarshal(data, &m)
		got = append(got, m.Text)
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		if err := bus.Publish(ctx, events.ChatSubject("default-room"), map[string]string{"Text": text}); err != nil {
			t.Fatal(err)
		}
	}
	if len(got) != 3 || got[0] != "one" || got[2] != "three" {
		t.Errorf("got %v", got)
	}

	_ = sub.Unsubscribe()
	_ = bus.Publish(ctx, events.ChatSubject("default-room"), map[string]string{"Text": "four"})
	if len(got) != 3 {
		t.Errorf("delivered after unsubscribe: %v", got)
	}
	if n := bus.Subscribers(events.ChatSubject("default-room")); n != 0 {
		t.Errorf("subscribers = %d", n)
	}
}

func TestMemoryBus_SubjectsAreIsolated(t *testing.T) {
	bus := events.NewMemoryBus()
	calls := 0
	_, _ = bus.Subscribe(events.NotifySubject("a"), func(string, []byte) { calls++ })
	_ = bus.Publish(context.Background(), events.NotifySubject("b"), "x")
	if calls != 0 {
		t.Errorf("handler for a received b's event")
	}
}

func TestMemoryBus_RawBytesPassThrough(t *testing.T) {
	bus := events.NewMemoryBus()
	var got []byte
	_, _ = bus.Subscribe("s", func(_ string, data []byte) { got = data })
	_ = bus.Publish(context.Background(), "s", []byte(`{"a":1}`))
	if string(got) != `{"a":1}` {
		t.Errorf("got %s", got)
	}
}
