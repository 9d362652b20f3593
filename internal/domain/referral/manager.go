package referral

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardlink/wardlink/internal/platform/websocket"
)

// LiveFeedManager starts a merged live view whenever a websocket topic of the
// form "referrals/<institution-id>" gains its first subscriber, publishes
// each emitted view on that topic, and releases the view when the last
// subscriber detaches. Wire it to the hub via Hub.TopicObserver.
type LiveFeedManager struct {
	liveView  *LiveView
	publisher websocket.EventPublisher
	logger    zerolog.Logger

	mu     sync.Mutex
	active map[string]func()
}

func NewLiveFeedManager(liveView *LiveView, publisher websocket.EventPublisher, logger zerolog.Logger) *LiveFeedManager {
	return &LiveFeedManager{
		liveView:  liveView,
		publisher: publisher,
		logger:    logger,
		active:    make(map[string]func()),
	}
}

// ObserveTopic implements the hub's TopicObserver contract.
func (m *LiveFeedManager) ObserveTopic(topic string, active bool) {
	institutionID, ok := parseReferralTopic(topic)
	if !ok {
		return
	}
	if active {
		m.start(topic, institutionID)
	} else {
		m.stop(topic)
	}
}

func (m *LiveFeedManager) start(topic string, institutionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.active[topic]; running {
		return
	}

	release, err := m.liveView.Subscribe(context.Background(), institutionID, func(v View) {
		data, err := json.Marshal(v)
		if err != nil {
			m.logger.Error().Err(err).Str("topic", topic).Msg("failed to marshal live view")
			return
		}
		event := websocket.Event{
			Type:      "referrals.snapshot",
			Topic:     topic,
			Timestamp: time.Now(),
			Data:      data,
		}
		if err := m.publisher.Publish(context.Background(), event); err != nil {
			m.logger.Error().Err(err).Str("topic", topic).Msg("failed to publish live view")
		}
	})
	if err != nil {
		m.logger.Error().Err(err).Str("topic", topic).Msg("failed to start live view")
		return
	}
	m.active[topic] = release
	m.logger.Info().Str("topic", topic).Msg("live referral feed started")
}

func (m *LiveFeedManager) stop(topic string) {
	m.mu.Lock()
	release, ok := m.active[topic]
	delete(m.active, topic)
	m.mu.Unlock()

	if ok {
		release()
		m.logger.Info().Str("topic", topic).Msg("live referral feed stopped")
	}
}

// Shutdown releases every active feed.
func (m *LiveFeedManager) Shutdown() {
	m.mu.Lock()
	releases := make([]func(), 0, len(m.active))
	for topic, release := range m.active {
		releases = append(releases, release)
		delete(m.active, topic)
	}
	m.mu.Unlock()

	for _, release := range releases {
		release()
	}
}

func parseReferralTopic(topic string) (uuid.UUID, bool) {
	const prefix = "referrals/"
	if !strings.HasPrefix(topic, prefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(topic, prefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
