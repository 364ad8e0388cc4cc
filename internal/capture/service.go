package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nisalabs/nisa-core/internal/bus"
	"github.com/nisalabs/nisa-core/internal/config"
	"github.com/nisalabs/nisa-core/internal/protocol"
)

// Service drives the capture controller from the bus: toggle messages flip
// the microphone state and audio frames feed the capture buffer.
type Service struct {
	cfg        config.CaptureConfig
	controller *Controller
	bus        *bus.Client

	subToggle *nats.Subscription
	subFrames *nats.Subscription
}

func NewService(cfg config.CaptureConfig, controller *Controller, busClient *bus.Client) *Service {
	return &Service{
		cfg:        cfg,
		controller: controller,
		bus:        busClient,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectCaptureToggle, s.handleToggle)
	if err != nil {
		return fmt.Errorf("subscribe capture toggle: %w", err)
	}
	s.subToggle = sub

	subFrames, err := s.bus.Conn().Subscribe(protocol.SubjectAudioFramePrefix+".>", s.handleFrame)
	if err != nil {
		_ = sub.Drain()
		return fmt.Errorf("subscribe audio frames: %w", err)
	}
	s.subFrames = subFrames
	return nil
}

func (s *Service) Close() {
	if s.subToggle != nil {
		_ = s.subToggle.Drain()
	}
	if s.subFrames != nil {
		_ = s.subFrames.Drain()
	}
	s.controller.Close()
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || (s.subToggle != nil && s.subFrames != nil)
}

func (s *Service) handleToggle(msg *nats.Msg) {
	var toggle protocol.CaptureToggle
	if err := json.Unmarshal(msg.Data, &toggle); err != nil {
		s.bus.Logger().Warn("failed to decode capture toggle", slogError(err))
		return
	}
	ctx, cancel := context.WithTimeout(s.controller.ctx, 45*time.Second)
	defer cancel()
	if _, err := s.controller.Toggle(ctx); err != nil {
		s.bus.Logger().Warn("capture toggle failed", slogError(err))
	}
}

func (s *Service) handleFrame(msg *nats.Msg) {
	var frame protocol.AudioFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.bus.Logger().Warn("failed to decode audio frame", slogError(err))
		return
	}
	s.controller.PushAudio(frame.PCM)
}
