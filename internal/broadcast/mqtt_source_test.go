package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/chroma-sync/internal/device"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/mqtt"
)

// fakeSubscriber is a test Subscriber.
type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, h mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]mqtt.MessageHandler)
	}
	f.handlers[topic] = h
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeSubscriber) publish(topic, payload string) error {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h == nil {
		return errors.New("no subscriber")
	}
	return h(topic, []byte(payload))
}

func TestMQTTSource_Decode(t *testing.T) {
	clamp := NewMQTTSource(&fakeSubscriber{}, "t", 1, PolicyClamp)
	reject := NewMQTTSource(&fakeSubscriber{}, "t", 1, PolicyReject)

	tests := []struct {
		name    string
		src     *MQTTSource
		payload string
		want    Event
		wantErr error
	}{
		{
			name:    "colors",
			src:     clamp,
			payload: `{"colors":[[1,2,3],[4,5,6],[7,8,9],[10,11,12]]}`,
			want:    Event{Type: TypeEffect, Effect: device.ColorEffect{{R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}, {R: 7, G: 8, B: 9}, {R: 10, G: 11, B: 12}}},
		},
		{
			name:    "clamped",
			src:     clamp,
			payload: `{"colors":[[999,0,0],[0,0,0],[0,0,0],[0,0,0]]}`,
			want:    Event{Type: TypeEffect, Effect: device.ColorEffect{{R: 255}}},
		},
		{
			name:    "rejected",
			src:     reject,
			payload: `{"colors":[[999,0,0],[0,0,0],[0,0,0],[0,0,0]]}`,
			wantErr: ErrOutOfRange,
		},
		{name: "status", src: clamp, payload: `{"status":"live"}`, want: Event{Type: TypeStatus, Status: Live}},
		{name: "bad status", src: clamp, payload: `{"status":"meh"}`, wantErr: ErrInvalidPayload},
		{name: "empty", src: clamp, payload: `{}`, wantErr: ErrInvalidPayload},
		{name: "both", src: clamp, payload: `{"status":"live","colors":[]}`, wantErr: ErrInvalidPayload},
		{name: "not json", src: clamp, payload: `red`, wantErr: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.src.Decode([]byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.Type != tt.want.Type || got.Effect != tt.want.Effect || got.Status != tt.want.Status {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMQTTSource_Lifecycle(t *testing.T) {
	sub := &fakeSubscriber{}
	src := NewMQTTSource(sub, "chromasync/broadcast/effect", 1, "")
	out := make(chan Event, 1)

	if err := src.Subscribe(out); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Subscribe() before Init error = %v, want ErrNotInitialized", err)
	}
	if err := src.Init(context.Background(), ""); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := src.Subscribe(out); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := src.Subscribe(out); !errors.Is(err, ErrAlreadySubscribed) {
		t.Errorf("second Subscribe() error = %v, want ErrAlreadySubscribed", err)
	}

	if err := sub.publish("chromasync/broadcast/effect", `{"status":"not_live"}`); err != nil {
		t.Fatalf("publish() error = %v", err)
	}
	if ev := <-out; ev.Status != NotLive {
		t.Errorf("event status = %q, want not_live", ev.Status)
	}

	// Full channel drops instead of blocking.
	sub.publish("chromasync/broadcast/effect", `{"status":"live"}`) //nolint:errcheck // Fills the buffer
	if err := sub.publish("chromasync/broadcast/effect", `{"status":"live"}`); err == nil {
		t.Error("publish() with full queue error = nil, want error")
	}

	if err := src.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if err := sub.publish("chromasync/broadcast/effect", `{"status":"live"}`); err == nil {
		t.Error("publish() after Unsubscribe error = nil, want error")
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
