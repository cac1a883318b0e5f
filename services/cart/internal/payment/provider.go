// Package payment creates payment intents for cart checkout.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/money"
)

// Intent is a provider-side payment session for a cart total.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
}

// Provider creates a payment intent, or updates the amount of an existing
// one when intentID is non-empty.
type Provider interface {
	CreateOrUpdate(ctx context.Context, intentID string, amount int64) (Intent, error)
}

// MockProvider is an in-memory Provider for development and tests.
type MockProvider struct {
	mu      sync.Mutex
	intents map[string]Intent
	logger  *slog.Logger
}

// NewMockProvider creates an empty MockProvider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{intents: make(map[string]Intent), logger: logger}
}

// CreateOrUpdate implements Provider.
func (p *MockProvider) CreateOrUpdate(ctx context.Context, intentID string, amount int64) (Intent, error) {
	if amount <= 0 {
		return Intent{}, apperrors.InvalidInput("payment amount must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if intentID != "" {
		intent, ok := p.intents[intentID]
		if !ok {
			return Intent{}, apperrors.NotFound("payment intent", intentID)
		}
		intent.Amount = amount
		p.intents[intentID] = intent
		p.logger.InfoContext(ctx, "payment intent updated",
			slog.String("intent_id", intentID),
			slog.String("amount", money.Format(amount)),
		)
		return intent, nil
	}

	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	intent := Intent{
		ID:           id,
		ClientSecret: fmt.Sprintf("%s_secret_%s", id, uuid.NewString()[:8]),
		Amount:       amount,
	}
	p.intents[id] = intent
	p.logger.InfoContext(ctx, "payment intent created",
		slog.String("intent_id", id),
		slog.String("amount", money.Format(amount)),
	)
	return intent, nil
}
