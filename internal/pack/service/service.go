package service

import (
	"context"
	"database/sql"
	"errors"

	"carflex/internal/pack"
)

var ErrPackNotFound = errors.New("pack not found")

type PackRepository interface {
	GetAll(ctx context.Context) ([]*pack.Pack, error)
	GetByID(ctx context.Context, id string) (*pack.Pack, error)
	Create(ctx context.Context, p *pack.Pack) error
	Update(ctx context.Context, id string, upd pack.Update) (*pack.Pack, error)
	Delete(ctx context.Context, id string) error
}

type Service struct {
	repo PackRepository
}

func NewService(repo PackRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetAll(ctx context.Context) ([]*pack.Pack, error) {
	return s.repo.GetAll(ctx)
}

func (s *Service) GetByID(ctx context.Context, id string) (*pack.Pack, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPackNotFound
	}
	return p, err
}

func (s *Service) Create(ctx context.Context, p *pack.Pack) error {
	return s.repo.Create(ctx, p)
}

func (s *Service) Update(ctx context.Context, id string, upd pack.Update) (*pack.Pack, error) {
	p, err := s.repo.Update(ctx, id, upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPackNotFound
	}
	return p, err
}

func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPackNotFound
	}
	return err
}
