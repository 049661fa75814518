package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"carflex/internal/user"
	"carflex/pkg/hash"
	"carflex/pkg/mailer"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrUserNotFound = errors.New("user not found")
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetAll(ctx context.Context) ([]*user.User, error)
	UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (*user.User, error)
	AdminUpdate(ctx context.Context, id string, upd user.AdminUpdate) (*user.User, error)
}

type UserService struct {
	repo   UserRepository
	mailer mailer.Mailer
	appURL string
	log    zerolog.Logger
}

func NewUserService(repo UserRepository, m mailer.Mailer, appURL string, log zerolog.Logger) *UserService {
	return &UserService{repo: repo, mailer: m, appURL: appURL, log: log}
}

func (s *UserService) Register(ctx context.Context, email, password, name, phone, address string) (*user.User, error) {
	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &user.User{
		Email:    email,
		Password: hashed,
		Name:     name,
		Phone:    phone,
		Address:  address,
		Role:     user.RoleUser,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.sendVerificationEmail(ctx, u)

	return u, nil
}

// sendVerificationEmail hands the welcome/verification message to the mail
// collaborator. Delivery failures never fail registration.
func (s *UserService) sendVerificationEmail(ctx context.Context, u *user.User) {
	token, err := mailer.GenerateVerificationToken()
	if err != nil {
		s.log.Error().Err(err).Str("user_id", u.ID).Msg("verification token generation failed")
		return
	}
	url := mailer.VerificationURL(s.appURL, token)
	if err := s.mailer.SendVerification(ctx, u.Email, u.Name, url); err != nil {
		s.log.Error().Err(err).Str("user_id", u.ID).Msg("verification email failed")
	}
}

func (s *UserService) Login(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCreds
	}

	if !hash.CheckPassword(u.Password, password) {
		return nil, ErrInvalidCreds
	}

	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (*user.User, error) {
	u, err := s.repo.UpdateProfile(ctx, id, upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *UserService) IsAdmin(ctx context.Context, id string) (bool, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

func (s *UserService) GetAll(ctx context.Context) ([]*user.User, error) {
	return s.repo.GetAll(ctx)
}

func (s *UserService) AdminUpdate(ctx context.Context, id string, upd user.AdminUpdate) (*user.User, error) {
	u, err := s.repo.AdminUpdate(ctx, id, upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}
