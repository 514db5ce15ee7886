package notifications

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// EventMediaAvailable is dispatched when a completed request's title is ready.
const EventMediaAvailable = "media.available"

// Payload carries the enriched content of one notification.
type Payload struct {
	Event      string `json:"event"`
	Subject    string `json:"subject"`
	Message    string `json:"message"`
	Image      string `json:"image,omitempty"`
	MediaID    uint64 `json:"mediaId"`
	ExternalID string `json:"externalId"`
	MediaType  string `json:"mediaType"`
	RequestID  uint64 `json:"requestId"`
	UserID     uint64 `json:"userId"`
	Is4k       bool   `json:"is4k"`
	Seasons    []int  `json:"seasons,omitempty"`
}

// Agent delivers a notification over one transport.
type Agent interface {
	Name() string
	Send(ctx context.Context, payload Payload) error
}

// Manager fans notifications out to all registered agents. Dispatch is
// fire-and-forget: delivery failures are logged and never reach the caller,
// so user-visible request state can never depend on a transport working.
type Manager struct {
	agents []Agent
	logger *logrus.Logger
}

// NewManager creates a new notification manager
func NewManager(logger *logrus.Logger) *Manager {
	return &Manager{logger: logger}
}

// RegisterAgent adds a delivery agent
func (m *Manager) RegisterAgent(agent Agent) {
	m.agents = append(m.agents, agent)
}

// Dispatch sends the payload to every agent in the background.
func (m *Manager) Dispatch(event string, payload Payload) {
	payload.Event = event

	for _, agent := range m.agents {
		go func(agent Agent) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := agent.Send(ctx, payload); err != nil {
				m.logger.WithError(err).WithFields(logrus.Fields{
					"agent":    agent.Name(),
					"event":    event,
					"media_id": payload.MediaID,
				}).Error("Failed to send notification")
			}
		}(agent)
	}
}
