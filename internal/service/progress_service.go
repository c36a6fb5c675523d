package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-evaluator/internal/dto"
	"github.com/noah-isme/gema-evaluator/internal/observability"
)

const progressBufferSize = 32

// ProgressService fans evaluation progress out to websocket subscribers.
type ProgressService interface {
	Publish(ctx context.Context, event dto.ProgressEvent)
	Subscribe(sessionID string) (<-chan dto.ProgressEvent, func())
	Start(ctx context.Context) error
}

type progressService struct {
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	broker      *progressBroker
	nodeID      string
}

type progressEnvelope struct {
	Source string            `json:"source"`
	Event  dto.ProgressEvent `json:"event"`
}

type progressBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.ProgressEvent]struct{}
}

// NewProgressService constructs the broker. natsConn may be nil for single node deployments.
func NewProgressService(natsConn *nats.Conn, subject string, logger zerolog.Logger) ProgressService {
	if subject == "" {
		subject = "evaluator.progress"
	}

	return &progressService{
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "progress_service").Logger(),
		broker: &progressBroker{
			subscribers: make(map[string]map[chan dto.ProgressEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

// Start subscribes to the shared NATS subject until ctx is cancelled.
func (s *progressService) Start(ctx context.Context) error {
	if s.nats == nil {
		return nil
	}

	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to unsubscribe progress subject")
		}
	}()
	return nil
}

func (s *progressService) Publish(ctx context.Context, event dto.ProgressEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	s.broker.broadcast(event)

	if s.nats == nil {
		return
	}
	payload, err := json.Marshal(progressEnvelope{Source: s.nodeID, Event: event})
	if err != nil {
		s.logger.Warn().Err(err).Msg("encode progress event")
		return
	}
	if err := s.nats.Publish(s.natsSubject, payload); err != nil {
		s.logger.Warn().Err(err).Str("session_id", event.SessionID).Msg("failed to publish progress to nats")
	}
}

func (s *progressService) Subscribe(sessionID string) (<-chan dto.ProgressEvent, func()) {
	channel := make(chan dto.ProgressEvent, progressBufferSize)

	s.broker.subscribe(sessionID, channel)
	observability.ProgressClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(sessionID, channel)
			observability.ProgressClients().Dec()
		})
	}

	return channel, cleanup
}

func (s *progressService) handleEnvelope(payload []byte) {
	var envelope progressEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid progress event payload")
		return
	}
	if envelope.Source == s.nodeID {
		return
	}
	s.broker.broadcast(envelope.Event)
}

func (b *progressBroker) subscribe(sessionID string, ch chan dto.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[sessionID]; !exists {
		b.subscribers[sessionID] = make(map[chan dto.ProgressEvent]struct{})
	}
	b.subscribers[sessionID][ch] = struct{}{}
}

func (b *progressBroker) unsubscribe(sessionID string, ch chan dto.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[sessionID]; ok {
		if _, present := subscribers[ch]; present {
			delete(subscribers, ch)
			close(ch)
		}
		if len(subscribers) == 0 {
			delete(b.subscribers, sessionID)
		}
	}
}

func (b *progressBroker) broadcast(event dto.ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[event.SessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}
