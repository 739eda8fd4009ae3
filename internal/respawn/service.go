// Package respawn reacts to host events: actor movement, death and
// reconnection. It decides where an actor comes back and what they are told.
package respawn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Visual-Illusions/NewU/internal/model"
	"github.com/Visual-Illusions/NewU/internal/station"
)

// PermissionUse gates station respawns.
const PermissionUse = "newu.use"

// MoveThreshold is how far an actor must move before the next discovery lookup.
const MoveThreshold = 10.0

// Respawn outcomes reported to the Recorder.
const (
	OutcomeStation      = "station"
	OutcomeWaived       = "waived"
	OutcomeNoStation    = "no_station"
	OutcomeUnaffordable = "unaffordable"
	OutcomeNotPermitted = "not_permitted"
)

const (
	textDiscovered   = "You have discovered a new NewU station."
	textCharged      = "Reconstruction fee of %.2f has been deducted from your account."
	textWaived       = "You could not cover the reconstruction fee. It has been waived this time."
	textUnaffordable = "You cannot afford a NewU reconstruction. Returning you to the world spawn."
)

// Registry is the part of the station registry the service needs.
type Registry interface {
	Discover(actorID string, pose model.Pose) (station.Snapshot, bool)
	DiscoveredRespawn(actorID string, pose model.Pose) (model.Pose, bool)
}

// Messages supplies flavor lines.
type Messages interface {
	Random() string
}

// Fees charges respawn fees.
type Fees interface {
	CanAfford(ctx context.Context, actorID string) bool
	Charge(ctx context.Context, actorID string) float64
}

// Recorder receives respawn metrics.
type Recorder interface {
	ObserveRespawn(outcome string)
	ObserveFee(amount float64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRespawn(string) {}
func (nopRecorder) ObserveFee(float64)    {}

// Outcome is the result of a respawning event.
type Outcome struct {
	Pose     model.Pose
	Fee      float64
	Messages []model.Message
}

// Option configures a Service.
type Option func(*Service)

// WithFees enables charging. When waivable is true, actors who cannot pay
// still respawn at their station for free.
func WithFees(fees Fees, waivable bool) Option {
	return func(s *Service) {
		s.fees = fees
		s.waivable = waivable
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// Service keeps per-actor state between host events.
type Service struct {
	registry Registry
	messages Messages
	fees     Fees
	waivable bool
	recorder Recorder
	tracer   trace.Tracer

	mu      sync.Mutex
	cache   map[string]model.Pose // last position a discovery lookup ran at
	pending map[string]string     // flavor line to show after respawn
}

// NewService creates a respawn service.
func NewService(registry Registry, messages Messages, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		messages: messages,
		recorder: nopRecorder{},
		tracer:   otel.Tracer("github.com/Visual-Illusions/NewU/internal/respawn"),
		cache:    make(map[string]model.Pose),
		pending:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Moved handles actor movement. A discovery lookup runs only when the actor
// has moved more than MoveThreshold since the last lookup.
func (s *Service) Moved(ctx context.Context, actor model.Actor) []model.Message {
	s.mu.Lock()
	last, seen := s.cache[actor.ID]
	if seen && last.Distance(actor.Pose) <= MoveThreshold {
		s.mu.Unlock()
		return nil
	}
	s.cache[actor.ID] = actor.Pose
	s.mu.Unlock()

	_, span := s.tracer.Start(ctx, "respawn.moved", trace.WithAttributes(
		attribute.String("actor.id", actor.ID),
		attribute.String("world", actor.Pose.World),
	))
	defer span.End()

	snap, ok := s.registry.Discover(actor.ID, actor.Pose)
	span.SetAttributes(attribute.Bool("discovered", ok))
	if !ok {
		return nil
	}
	slog.Info("station discovered", "actor", actor.ID, "station", snap.Name)
	return []model.Message{model.Info(textDiscovered)}
}

// Respawning picks the actor's respawn pose. worldSpawn is used when the
// actor lacks permission, has discovered no reachable station, or cannot pay
// and payments are not waived. A respawn is never blocked.
func (s *Service) Respawning(ctx context.Context, actor model.Actor, worldSpawn model.Pose) Outcome {
	ctx, span := s.tracer.Start(ctx, "respawn.respawning", trace.WithAttributes(
		attribute.String("actor.id", actor.ID),
		attribute.String("world", actor.Pose.World),
	))
	defer span.End()

	if !actor.HasPermission(PermissionUse) {
		s.observe(span, actor.ID, OutcomeNotPermitted, 0)
		return Outcome{Pose: worldSpawn}
	}

	s.mu.Lock()
	delete(s.cache, actor.ID)
	s.pending[actor.ID] = s.messages.Random()
	s.mu.Unlock()

	target, ok := s.registry.DiscoveredRespawn(actor.ID, actor.Pose)
	if !ok {
		s.observe(span, actor.ID, OutcomeNoStation, 0)
		return Outcome{Pose: worldSpawn}
	}
	if s.fees == nil {
		s.observe(span, actor.ID, OutcomeStation, 0)
		return Outcome{Pose: target}
	}

	switch {
	case s.fees.CanAfford(ctx, actor.ID):
		out := Outcome{Pose: target}
		if fee := s.fees.Charge(ctx, actor.ID); fee > 0 {
			out.Fee = fee
			out.Messages = []model.Message{model.Info(fmt.Sprintf(textCharged, fee))}
		}
		s.observe(span, actor.ID, OutcomeStation, out.Fee)
		return out
	case s.waivable:
		s.observe(span, actor.ID, OutcomeWaived, 0)
		return Outcome{Pose: target, Messages: []model.Message{model.Notice(textWaived)}}
	default:
		s.observe(span, actor.ID, OutcomeUnaffordable, 0)
		return Outcome{Pose: worldSpawn, Messages: []model.Message{model.Notice(textUnaffordable)}}
	}
}

func (s *Service) observe(span trace.Span, actorID, outcome string, fee float64) {
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Float64("fee", fee),
	)
	s.recorder.ObserveRespawn(outcome)
	if fee > 0 {
		s.recorder.ObserveFee(fee)
	}
	slog.Debug("respawn resolved", "actor", actorID, "outcome", outcome, "fee", fee)
}

// Respawned delivers the flavor line queued by Respawning, if any.
func (s *Service) Respawned(_ context.Context, actor model.Actor) []model.Message {
	s.mu.Lock()
	line, ok := s.pending[actor.ID]
	delete(s.pending, actor.ID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return []model.Message{model.Info(line)}
}

// Disconnected drops all state kept for actorID.
func (s *Service) Disconnected(actorID string) {
	s.mu.Lock()
	delete(s.cache, actorID)
	delete(s.pending, actorID)
	s.mu.Unlock()
}

// Tracked returns how many actors have cached state.
func (s *Service) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{}, len(s.cache)+len(s.pending))
	for id := range s.cache {
		ids[id] = struct{}{}
	}
	for id := range s.pending {
		ids[id] = struct{}{}
	}
	return len(ids)
}
