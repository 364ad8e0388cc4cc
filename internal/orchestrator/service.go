package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nisalabs/nisa-core/internal/bus"
	"github.com/nisalabs/nisa-core/internal/conversation"
	"github.com/nisalabs/nisa-core/internal/protocol"
)

// Service exposes the orchestrator over the message bus: it consumes
// submitted utterances and publishes appended turns and status transitions.
type Service struct {
	orch      *Orchestrator
	bus       *bus.Client
	logger    *slog.Logger
	sessionID string

	subUtterances *nats.Subscription

	meter        metric.Meter
	turnCounter  metric.Int64Counter
	dropCounter  metric.Int64Counter
	statusGauge  metric.Int64ObservableGauge
	registration metric.Registration
}

func NewService(orch *Orchestrator, busClient *bus.Client, sessionID string, logger *slog.Logger) *Service {
	return &Service{
		orch:      orch,
		bus:       busClient,
		logger:    logger.With(slog.String("component", "orchestrator-service")),
		sessionID: sessionID,
		meter:     otel.Meter("github.com/nisalabs/nisa-core/orchestrator"),
	}
}

func (s *Service) Start() error {
	if err := s.initMetrics(); err != nil {
		return err
	}

	s.orch.SetCallbacks(Callbacks{
		OnTurn:   s.publishTurn,
		OnStatus: s.publishStatus,
	})

	sub, err := s.bus.Conn().Subscribe(protocol.SubjectUtteranceSubmitted, s.handleUtterance)
	if err != nil {
		return err
	}
	s.subUtterances = sub
	return nil
}

func (s *Service) Close() {
	if s.subUtterances != nil {
		_ = s.subUtterances.Drain()
	}
	if s.registration != nil {
		_ = s.registration.Unregister()
	}
	s.orch.Close()
}

func (s *Service) Healthy() bool {
	return s.subUtterances != nil
}

// Submit feeds an utterance straight into the pipeline, bypassing the bus.
// HTTP surfaces use this path.
func (s *Service) Submit(utt conversation.Utterance) error {
	err := s.orch.Submit(utt)
	s.countSubmit(err)
	return err
}

// SessionID identifies the conversation this daemon instance is running.
func (s *Service) SessionID() string {
	return s.sessionID
}

// Status reports the orchestrator's current turn state.
func (s *Service) Status() Status {
	return s.orch.Status()
}

// Turns returns a snapshot of the conversation log.
func (s *Service) Turns() []conversation.Turn {
	return s.orch.Log().Turns()
}

func (s *Service) handleUtterance(msg *nats.Msg) {
	var submitted protocol.UtteranceSubmitted
	if err := json.Unmarshal(msg.Data, &submitted); err != nil {
		s.logger.Warn("failed to decode submitted utterance", slogError(err))
		return
	}
	err := s.orch.Submit(conversation.Utterance{
		Text:   submitted.Text,
		Origin: conversation.Origin(submitted.Origin),
	})
	s.countSubmit(err)
	if err != nil {
		s.logger.Warn("utterance rejected",
			slog.String("origin", submitted.Origin),
			slogError(err))
	}
}

func (s *Service) countSubmit(err error) {
	if s.turnCounter == nil || s.dropCounter == nil {
		return
	}
	ctx := context.Background()
	switch err {
	case nil:
		s.turnCounter.Add(ctx, 1)
	case ErrTurnInFlight:
		s.dropCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "in_flight")))
	case ErrEmptyUtterance:
		s.dropCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "empty")))
	}
}

func (s *Service) publishTurn(turn conversation.Turn) {
	evt := protocol.TurnAppended{
		SessionID: s.sessionID,
		Speaker:   string(turn.Speaker),
		Text:      turn.Text,
		Emotion:   string(turn.Emotion),
		CreatedAt: turn.CreatedAt,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn("failed to encode turn event", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectTurnAppended, data); err != nil {
		s.logger.Warn("failed to publish turn event", slogError(err))
	}
}

func (s *Service) publishStatus(status Status) {
	evt := protocol.StatusChanged{
		SessionID: s.sessionID,
		Status:    string(status),
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn("failed to encode status event", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectStatusChanged, data); err != nil {
		s.logger.Warn("failed to publish status event", slogError(err))
	}
}

func (s *Service) initMetrics() error {
	turns, err := s.meter.Int64Counter("nisa.turns.accepted",
		metric.WithDescription("Utterances accepted into the turn pipeline"))
	if err != nil {
		return err
	}
	drops, err := s.meter.Int64Counter("nisa.turns.dropped",
		metric.WithDescription("Utterances rejected before the pipeline"))
	if err != nil {
		return err
	}
	gauge, err := s.meter.Int64ObservableGauge("nisa.turn.active",
		metric.WithDescription("Whether a turn is currently in flight"))
	if err != nil {
		return err
	}
	reg, err := s.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		var active int64
		if s.orch.Status() != StatusIdle {
			active = 1
		}
		obs.ObserveInt64(gauge, active)
		return nil
	}, gauge)
	if err != nil {
		return err
	}
	s.turnCounter = turns
	s.dropCounter = drops
	s.statusGauge = gauge
	s.registration = reg
	return nil
}
