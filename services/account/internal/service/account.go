package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/account/internal/domain"
	"github.com/utafrali/storefront/services/account/internal/repository"
)

// DefaultBcryptCost is the password hashing cost used outside tests.
const DefaultBcryptCost = 12

// Password length bounds. bcrypt reads at most 72 bytes.
const (
	minPasswordLength = 8
	maxPasswordBytes  = 72
)

// errInvalidCredentials is returned for both an unknown email and a wrong
// password so a caller cannot probe which emails are registered.
var errInvalidCredentials = apperrors.Unauthorized("invalid email or password")

// TokenIssuer signs access tokens for an account.
type TokenIssuer interface {
	GenerateAccessToken(subject, email string) (string, error)
	Expiry() time.Duration
}

// EventPublisher publishes account domain events.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, account *domain.Account) error
}

// RegisterInput holds the parameters for creating an account.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// LoginInput holds the parameters for signing in.
type LoginInput struct {
	Email    string
	Password string
}

// AccountService implements registration and sign-in.
type AccountService struct {
	repo       repository.AccountRepository
	tokens     TokenIssuer
	events     EventPublisher
	bcryptCost int
	dummyHash  []byte
	logger     *slog.Logger
	now        func() time.Time
}

// NewAccountService creates a new account service hashing passwords at
// bcryptCost.
func NewAccountService(repo repository.AccountRepository, tokens TokenIssuer, events EventPublisher, bcryptCost int, logger *slog.Logger) (*AccountService, error) {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, bcryptCost)
	}
	// Compared against on unknown emails so both failure paths cost one hash.
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash placeholder password: %w", err)
	}
	return &AccountService{
		repo:       repo,
		tokens:     tokens,
		events:     events,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Register creates an account and signs it in.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.Session, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, apperrors.InvalidInput("display name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := &domain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	if err := s.events.PublishAccountRegistered(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account registered event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account registered", slog.String("account_id", account.ID))
	return s.session(account)
}

// Login checks the credentials and issues a new token.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (*domain.Session, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperrors.InvalidInput("email and password are required")
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("look up account: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
		return nil, errInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
		s.logger.InfoContext(ctx, "login rejected", slog.String("account_id", account.ID))
		return nil, errInvalidCredentials
	}

	s.logger.InfoContext(ctx, "account logged in", slog.String("account_id", account.ID))
	return s.session(account)
}

// Current returns the account behind an authenticated subject with a
// refreshed token.
func (s *AccountService) Current(ctx context.Context, accountID string) (*domain.Session, error) {
	if accountID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("account no longer exists")
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return s.session(account)
}

func (s *AccountService) session(account *domain.Account) (*domain.Session, error) {
	issuedAt := s.now().UTC()
	token, err := s.tokens.GenerateAccessToken(account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &domain.Session{
		Account:   account,
		Token:     token,
		ExpiresAt: issuedAt.Add(s.tokens.Expiry()),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return apperrors.InvalidInput(fmt.Sprintf("password must not exceed %d bytes", maxPasswordBytes))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}
	return nil
}
