package service

import (
	"context"
	"database/sql"
	"errors"

	"carflex/internal/subscription"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type SubscriptionRepository interface {
	GetCurrentByUserID(ctx context.Context, userID string) (*subscription.Subscription, error)
	GetCurrentWithPack(ctx context.Context, userID string) (*subscription.WithPack, error)
	GetAllWithUserAndPack(ctx context.Context) ([]*subscription.WithUserAndPack, error)
	Update(ctx context.Context, id string, upd subscription.Update) (*subscription.Subscription, error)
}

type Service struct {
	repo SubscriptionRepository
}

func NewService(repo SubscriptionRepository) *Service {
	return &Service{repo: repo}
}

// GetCurrent returns the user's current subscription with its pack, or nil
// when the user never subscribed.
func (s *Service) GetCurrent(ctx context.Context, userID string) (*subscription.WithPack, error) {
	return s.repo.GetCurrentWithPack(ctx, userID)
}

func (s *Service) GetAll(ctx context.Context) ([]*subscription.WithUserAndPack, error) {
	return s.repo.GetAllWithUserAndPack(ctx)
}

func (s *Service) Update(ctx context.Context, id string, upd subscription.Update) (*subscription.Subscription, error) {
	sub, err := s.repo.Update(ctx, id, upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	return sub, err
}
