package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type observerLog struct {
	mu     sync.Mutex
	events []string
}

func (o *observerLog) observe(topic string, active bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	state := "closed"
	if active {
		state = "opened"
	}
	o.events = append(o.events, state+" "+topic)
}

func (o *observerLog) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func newTestClient(topics ...string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		Topics: topics,
		Send:   make(chan []byte, 8),
	}
}

func TestHubObserverFiresOnFirstAndLastSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	obs := &observerLog{}
	hub.TopicObserver = obs.observe

	topic := ReferralTopic(uuid.MustParse("11111111-1111-1111-1111-111111111111"))

	first := newTestClient(topic)
	second := newTestClient(topic)
	hub.Register(first)
	hub.Register(second) // topic already open; no second "opened"

	hub.Unregister(first) // one subscriber left; topic stays open
	hub.Unregister(second)

	want := []string{"opened " + topic, "closed " + topic}
	got := obs.snapshot()
	if len(got) != len(want) {
		t.Fatalf("observer events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHubDynamicSubscribeNotifiesObserver(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	obs := &observerLog{}
	hub.TopicObserver = obs.observe

	client := newTestClient()
	hub.Register(client)

	topic := ReferralTopic(uuid.New())
	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{topic}})
	if hub.TopicCount(topic) != 1 {
		t.Fatalf("topic count = %d, want 1", hub.TopicCount(topic))
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{topic}})
	if hub.TopicCount(topic) != 0 {
		t.Fatalf("topic count after unsubscribe = %d", hub.TopicCount(topic))
	}

	want := []string{"opened " + topic, "closed " + topic}
	got := obs.snapshot()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("observer events = %v, want %v", got, want)
	}
}

func TestHubBroadcastReachesOnlySubscribedTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	topicA := ReferralTopic(uuid.New())
	topicB := ReferralTopic(uuid.New())

	subscriber := newTestClient(topicA)
	bystander := newTestClient(topicB)
	hub.Register(subscriber)
	hub.Register(bystander)

	hub.Broadcast(topicA, Event{
		Type:      "referrals.snapshot",
		Topic:     topicA,
		Timestamp: time.Now(),
	})

	select {
	case raw := <-subscriber.Send:
		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if evt.Topic != topicA || evt.Type != "referrals.snapshot" {
			t.Errorf("event = %+v", evt)
		}
	default:
		t.Fatal("subscriber received nothing")
	}

	select {
	case <-bystander.Send:
		t.Fatal("bystander received an event for a topic it never subscribed to")
	default:
	}
}

func TestHubBroadcastSkipsFullClientBuffers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	topic := ReferralTopic(uuid.New())

	client := &Client{
		ID:     uuid.New().String(),
		Topics: []string{topic},
		Send:   make(chan []byte), // unbuffered and never drained
	}
	hub.Register(client)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(topic, Event{Type: "referrals.snapshot", Topic: topic})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}

func TestHubUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newTestClient(ReferralTopic(uuid.New()))

	hub.Register(client)
	hub.Unregister(client)
	hub.Unregister(client) // second call must not close Send twice

	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d", hub.ClientCount())
	}
}
