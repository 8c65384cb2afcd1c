// Package domain defines the business logic for the activity signup service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/extracurricular/internal/observability"
)

var (
	// ErrActivityNotFound is returned when an activity name is not in the directory.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrParticipantNotFound is returned when unregistering an email that is not on the roster.
	ErrParticipantNotFound = errors.New("student is not signed up for this activity")
	// ErrAlreadyRegistered is returned when the email is already on the roster.
	ErrAlreadyRegistered = errors.New("student is already signed up for this activity")
	// ErrActivityFull is returned when capacity enforcement is on and the roster is full.
	ErrActivityFull = errors.New("activity is full")
)

// Directory captures the roster operations. Implementations must perform each
// membership check and the mutation that follows it atomically.
type Directory interface {
	List(ctx context.Context) (map[string]Activity, error)
	AddParticipant(ctx context.Context, name, email string, enforceCapacity bool) (Activity, error)
	RemoveParticipant(ctx context.Context, name, email string) (Activity, error)
}

// ChangeKind names a roster change event.
type ChangeKind string

const (
	ChangeRegistered   ChangeKind = "participant.registered"
	ChangeUnregistered ChangeKind = "participant.unregistered"
)

// ParticipantChange describes a successful signup or unregister.
type ParticipantChange struct {
	Kind             ChangeKind
	Activity         string
	Email            string
	ParticipantCount int
	MaxParticipants  int
	OccurredAt       time.Time
}

// EventPublisher forwards roster changes to downstream consumers.
type EventPublisher interface {
	PublishParticipantChanged(ctx context.Context, change ParticipantChange) error
}

type noopPublisher struct{}

func (noopPublisher) PublishParticipantChanged(context.Context, ParticipantChange) error { return nil }

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithPublisher sets the publisher that receives roster changes.
func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCapacityEnforcement rejects signups once an activity reaches max participants.
func WithCapacityEnforcement(enabled bool) Option {
	return func(s *Service) {
		s.enforceCapacity = enabled
	}
}

// Service orchestrates signup workflows.
type Service struct {
	directory       Directory
	publisher       EventPublisher
	logger          *zap.Logger
	enforceCapacity bool
	now             func() time.Time
}

// NewService constructs a Service.
func NewService(directory Directory, opts ...Option) *Service {
	s := &Service{
		directory: directory,
		publisher: noopPublisher{},
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListActivities returns every activity keyed by name.
func (s *Service) ListActivities(ctx context.Context) (map[string]Activity, error) {
	return s.directory.List(ctx)
}

// SignUp adds email to the named activity and returns a confirmation message.
func (s *Service) SignUp(ctx context.Context, activity, email string) (string, error) {
	updated, err := s.directory.AddParticipant(ctx, activity, email, s.enforceCapacity)
	observability.RecordSignupRequest(observability.OperationSignup, outcomeFor(err))
	if err != nil {
		s.logger.Debug("signup rejected", zap.String("activity", activity), zap.String("email", email), zap.Error(err))
		return "", err
	}

	observability.RecordRoster(activity, len(updated.Participants))
	s.logger.Info("participant signed up",
		zap.String("activity", activity),
		zap.String("email", email),
		zap.Int("participants", len(updated.Participants)),
	)
	s.publish(ctx, ChangeRegistered, activity, email, updated)

	return fmt.Sprintf("Signed up %s for %s", email, activity), nil
}

// Unregister removes email from the named activity and returns a confirmation message.
func (s *Service) Unregister(ctx context.Context, activity, email string) (string, error) {
	updated, err := s.directory.RemoveParticipant(ctx, activity, email)
	observability.RecordSignupRequest(observability.OperationUnregister, outcomeFor(err))
	if err != nil {
		s.logger.Debug("unregister rejected", zap.String("activity", activity), zap.String("email", email), zap.Error(err))
		return "", err
	}

	observability.RecordRoster(activity, len(updated.Participants))
	s.logger.Info("participant unregistered",
		zap.String("activity", activity),
		zap.String("email", email),
		zap.Int("participants", len(updated.Participants)),
	)
	s.publish(ctx, ChangeUnregistered, activity, email, updated)

	return fmt.Sprintf("Unregistered %s from %s", email, activity), nil
}

func (s *Service) publish(ctx context.Context, kind ChangeKind, activity, email string, updated Activity) {
	change := ParticipantChange{
		Kind:             kind,
		Activity:         activity,
		Email:            email,
		ParticipantCount: len(updated.Participants),
		MaxParticipants:  updated.MaxParticipants,
		OccurredAt:       s.now(),
	}
	if err := s.publisher.PublishParticipantChanged(ctx, change); err != nil {
		s.logger.Warn("failed to publish roster change",
			zap.String("event_type", string(kind)),
			zap.String("activity", activity),
			zap.Error(err),
		)
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, ErrActivityNotFound), errors.Is(err, ErrParticipantNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, ErrAlreadyRegistered):
		return observability.OutcomeAlreadyRegistered
	case errors.Is(err, ErrActivityFull):
		return observability.OutcomeActivityFull
	default:
		return observability.OutcomeError
	}
}
