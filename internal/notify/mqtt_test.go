package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/logging"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	token        mqtt.Token
	messages     []published
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.messages = append(c.messages, published{topic, qos, retained, payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.disconnected = true
}

func TestMQTTNotifier_Publish(t *testing.T) {
	client := &fakeClient{token: completedToken(nil)}
	n := newMQTTNotifier(client, "picscreenr/identified", logging.Discard())

	ev := Event{
		ImageID:  7,
		Filename: "beach.jpg",
		Caption:  "a man on a beach",
		Tags:     []string{"a", "man"},
		Persons:  []PersonLink{{PersonID: 3, Confidence: 0.9, Source: "face"}},
		Created:  []int64{3},
	}
	if err := n.Publish(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(client.messages))
	}
	msg := client.messages[0]
	if msg.topic != "picscreenr/identified" || msg.qos != 1 || msg.retained {
		t.Errorf("unexpected publish parameters: %+v", msg)
	}

	var got map[string]any
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got["image_id"] != float64(7) {
		t.Errorf("expected image_id 7, got %v", got["image_id"])
	}
	persons, ok := got["persons"].([]any)
	if !ok || len(persons) != 1 {
		t.Fatalf("expected one person, got %v", got["persons"])
	}
	if persons[0].(map[string]any)["source"] != "face" {
		t.Errorf("expected source face, got %v", persons[0])
	}
}

func TestMQTTNotifier_PublishError(t *testing.T) {
	boom := errors.New("broker rejected")
	client := &fakeClient{token: completedToken(boom)}
	n := newMQTTNotifier(client, "t", logging.Discard())

	if err := n.Publish(context.Background(), Event{ImageID: 1}); !errors.Is(err, boom) {
		t.Errorf("expected broker error, got %v", err)
	}
}

func TestMQTTNotifier_PublishTimeout(t *testing.T) {
	client := &fakeClient{token: &fakeToken{done: make(chan struct{})}}
	n := newMQTTNotifier(client, "t", logging.Discard())
	n.timeout = 10 * time.Millisecond

	if err := n.Publish(context.Background(), Event{ImageID: 1}); err == nil {
		t.Error("expected timeout error")
	}
}

func TestMQTTNotifier_PublishCancelled(t *testing.T) {
	client := &fakeClient{token: &fakeToken{done: make(chan struct{})}}
	n := newMQTTNotifier(client, "t", logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Publish(ctx, Event{ImageID: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMQTTNotifier_Close(t *testing.T) {
	client := &fakeClient{token: completedToken(nil)}
	n := newMQTTNotifier(client, "t", logging.Discard())
	if err := n.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !client.disconnected {
		t.Error("expected client to be disconnected")
	}
}

func TestNew_DisabledReturnsNop(t *testing.T) {
	n, err := New(config.MQTTConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := n.(Nop); !ok {
		t.Errorf("expected Nop notifier, got %T", n)
	}
	if err := n.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("expected Nop publish to succeed, got %v", err)
	}
}
