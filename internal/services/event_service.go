// internal/services/event_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/printforge/marketplace-backend/internal/config"
	"github.com/printforge/marketplace-backend/internal/models"
)

// MessageHandler processes one bus message. Return nil to ack, an error to
// nack and have the bus redeliver.
type MessageHandler func(ctx context.Context, payload []byte) error

// Bus is the durable publish/subscribe surface. Both the JetStream adapter
// and the in-memory test double implement it.
type Bus interface {
	Publish(subject string, data []byte, msgID string) error
	Subscribe(subject string, group string, handler MessageHandler) error
	Drain() error
	IsConnected() bool
}

const (
	// Per-message handler deadline; a stuck handler must not pin the
	// subscription forever.
	messageTimeout = 30 * time.Second

	// Bounded in-flight per subscription.
	maxAckPending = 10
)

type NATSBus struct {
	nats *nats.Conn
	js   nats.JetStreamContext
}

var _ Bus = (*NATSBus)(nil)

func NewNATSBus(endpoint, clientName string) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name(clientName),

		// Never give up reconnecting; wait 3s between attempts.
		nats.MaxReconnects(-1),
		nats.ReconnectWait(3 * time.Second),

		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logrus.WithError(err).Warn("NATS disconnected, buffering messages")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),

		// A permanently closed connection means the bus is unusable; exit so
		// the supervisor restarts the process with a fresh connection.
		nats.ClosedHandler(func(nc *nats.Conn) {
			logrus.Error("NATS connection closed permanently, exiting process")
			os.Exit(1)
		}),
	}

	nc, err := nats.Connect(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	return &NATSBus{nats: nc, js: js}, nil
}

// Publish sends the payload with a broker-side dedup id (Nats-Msg-Id).
func (b *NATSBus) Publish(subject string, data []byte, msgID string) error {
	logrus.WithFields(logrus.Fields{
		"subject":   subject,
		"data_size": len(data),
	}).Debug("Publishing event")

	_, err := b.js.Publish(subject, data, nats.MsgId(msgID))
	return err
}

// Subscribe joins the queue group on the subject with manual acks, replay of
// missed messages and bounded in-flight. Each delivery runs the handler under
// a fresh per-message context.
func (b *NATSBus) Subscribe(subject string, group string, handler MessageHandler) error {
	logrus.WithFields(logrus.Fields{
		"subject": subject,
		"queue":   group,
	}).Info("Subscribing to subject")

	opts := []nats.SubOpt{
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverAll(),
		nats.MaxAckPending(maxAckPending),
	}

	_, err := b.js.QueueSubscribe(subject, group, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
		defer cancel()

		if err := handler(ctx, msg.Data); err != nil {
			logrus.WithFields(logrus.Fields{
				"subject": subject,
				"error":   err,
			}).Error("Handler failed, nacking message")
			msg.Nak()
			return
		}

		if err := msg.Ack(); err != nil {
			logrus.WithFields(logrus.Fields{
				"subject": subject,
				"error":   err,
			}).Error("Failed to ack message")
		}
	}, opts...)

	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	return nil
}

// Drain finishes in-flight handlers and flushes pending publishes before
// closing the connection.
func (b *NATSBus) Drain() error {
	logrus.Info("Draining NATS connection")
	return b.nats.Drain()
}

func (b *NATSBus) IsConnected() bool {
	return b.nats.IsConnected()
}

// EventPublisher raises the gateway's domain events on the bus. Failures are
// returned to the caller, which logs and continues: post-commit publishes are
// best-effort.
type EventPublisher struct {
	bus Bus
	cfg config.EventsConfig
}

func NewEventPublisher(bus Bus, cfg config.EventsConfig) *EventPublisher {
	return &EventPublisher{bus: bus, cfg: cfg}
}

// RaiseStartFileValidationEvent routes the event by file type and dedupes on
// a listing-stable publish id.
func (p *EventPublisher) RaiseStartFileValidationEvent(evt models.StartFileValidationEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal validation event: %w", err)
	}

	msgID := fmt.Sprintf("start.%s.%s.%s", evt.UserID, evt.ListingID, evt.FileID)

	switch evt.FileType {
	case "image":
		return p.bus.Publish(p.cfg.ValidateImageSubject, data, msgID)
	case "model":
		return p.bus.Publish(p.cfg.ValidateModelSubject, data, msgID)
	default:
		return fmt.Errorf("unsupported file type: %s", evt.FileType)
	}
}

func (p *EventPublisher) RaiseListingIndexEvent(evt models.ReIndexListingEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal re-index event: %w", err)
	}

	msgID := fmt.Sprintf("reindex.%s", evt.ListingID)
	return p.bus.Publish(p.cfg.IndexListingSubject, data, msgID)
}
