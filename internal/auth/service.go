package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtan/parley/internal/models"
	"github.com/mtan/parley/internal/store"
)

var (
	// ErrInvalidCredentials is returned for an unknown username or a wrong
	// password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrMissingFields is returned when username or password is empty.
	ErrMissingFields = errors.New("username and password are required")
)

// Profile carries the optional profile fields accepted at signup.
type Profile struct {
	Email   string
	Img     string
	Bio     string
	Setting string
}

// Service verifies credentials, issues tokens and resolves tokens back to
// users. The same token check backs the HTTP and the websocket layer.
type Service struct {
	store  store.Store
	hasher *PasswordHasher
	tokens *TokenManager
}

func NewService(s store.Store, hasher *PasswordHasher, tokens *TokenManager) *Service {
	return &Service{store: s, hasher: hasher, tokens: tokens}
}

// Signup creates a user with a hashed password. The plaintext is never stored.
func (s *Service) Signup(ctx context.Context, uname, pw string, profile Profile) (*models.User, error) {
	if uname == "" || pw == "" {
		return nil, ErrMissingFields
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Uname:   uname,
		Pw:      hash,
		Email:   profile.Email,
		Img:     profile.Img,
		Bio:     profile.Bio,
		Setting: profile.Setting,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the credentials and issues a bearer token on success.
func (s *Service) Login(ctx context.Context, uname, pw string) (*models.User, string, error) {
	user, err := s.store.GetUserByUname(ctx, uname)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !s.hasher.Verify(pw, user.Pw) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}
	return user, token, nil
}

// VerifyToken resolves a bearer token to its user. The token must carry a
// valid signature and the embedded identity must still exist.
func (s *Service) VerifyToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}
