package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

const appendAttempts = 3

// SteeringService owns the versioned steering profile and its adaptation.
type SteeringService struct {
	repo   ports.SteeringRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewSteeringService wires the steering store.
func NewSteeringService(repo ports.SteeringRepository, logger *slog.Logger) *SteeringService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SteeringService{repo: repo, logger: logger.With("component", "steering"), now: time.Now}
}

// Current returns the highest profile version, creating the default profile
// when the store is empty.
func (s *SteeringService) Current(ctx context.Context) (domain.SteeringProfile, error) {
	current, err := s.repo.Current(ctx)
	if err == nil {
		return *current, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.SteeringProfile{}, fmt.Errorf("load steering profile: %w", err)
	}

	created, err := s.repo.Append(ctx, domain.DefaultSteeringProfile(s.now()))
	if errors.Is(err, domain.ErrVersionConflict) {
		// Another writer created version 1 first.
		current, err = s.repo.Current(ctx)
		if err != nil {
			return domain.SteeringProfile{}, fmt.Errorf("load steering profile: %w", err)
		}
		return *current, nil
	}
	if err != nil {
		return domain.SteeringProfile{}, fmt.Errorf("create default steering profile: %w", err)
	}
	s.logger.Info("default steering profile created", "version", created.Version)
	return *created, nil
}

// History lists every stored profile version, newest first.
func (s *SteeringService) History(ctx context.Context) ([]*domain.SteeringProfile, error) {
	if _, err := s.Current(ctx); err != nil {
		return nil, err
	}
	return s.repo.History(ctx)
}

// Update stores patch applied over the current profile as a new version.
func (s *SteeringService) Update(ctx context.Context, patch domain.SteeringPatch) (domain.SteeringProfile, error) {
	return s.appendDerived(ctx, func(current domain.SteeringProfile) domain.SteeringProfile {
		return patch.Apply(current, s.now())
	})
}

// ApplyFeedback adapts the profile to a meeting score. Positive feedback keeps
// the current profile; negative feedback stores an adapted version.
func (s *SteeringService) ApplyFeedback(ctx context.Context, score int, notes string) (domain.SteeringProfile, error) {
	switch score {
	case 1:
		return s.Current(ctx)
	case 0:
	default:
		return domain.SteeringProfile{}, fmt.Errorf("score %d: %w", score, domain.ErrInvalidFeedback)
	}

	next, err := s.appendDerived(ctx, func(current domain.SteeringProfile) domain.SteeringProfile {
		return domain.AdaptToFeedback(current, notes, s.now())
	})
	if err != nil {
		return domain.SteeringProfile{}, err
	}
	s.logger.Info("steering adapted from feedback",
		"version", next.Version,
		"weight_news", next.WeightNews,
		"weight_role_pains", next.WeightRolePains,
		"weight_competitors", next.WeightCompetitors)
	return next, nil
}

// appendDerived retries when a concurrent writer appended the same version.
func (s *SteeringService) appendDerived(ctx context.Context, derive func(domain.SteeringProfile) domain.SteeringProfile) (domain.SteeringProfile, error) {
	var lastErr error
	for range appendAttempts {
		current, err := s.Current(ctx)
		if err != nil {
			return domain.SteeringProfile{}, err
		}

		stored, err := s.repo.Append(ctx, derive(current))
		if err == nil {
			return *stored, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.SteeringProfile{}, fmt.Errorf("append steering profile: %w", err)
		}
		lastErr = err
	}
	return domain.SteeringProfile{}, fmt.Errorf("append steering profile: %w", lastErr)
}
