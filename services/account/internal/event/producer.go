package event

import (
	"context"
	"log/slog"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/services/account/internal/domain"
)

// TopicAccountRegistered carries one event per new account.
var TopicAccountRegistered = pkgkafka.Topic("account", "registered")

const typeAccountRegistered = "account.registered"

// AccountRegisteredData is the account.registered payload. It never carries
// the password hash.
type AccountRegisteredData struct {
	AccountID   string `json:"account_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Publisher is the Kafka side of the account events.
type Publisher = pkgkafka.Publisher

// Producer raises account domain events.
type Producer struct {
	emit *pkgkafka.Emitter
}

func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{emit: pkgkafka.NewEmitter(kafka, "account", "account-service", logger)}
}

// PublishAccountRegistered announces a new account.
func (p *Producer) PublishAccountRegistered(ctx context.Context, a *domain.Account) error {
	return p.emit.Emit(ctx, TopicAccountRegistered, typeAccountRegistered, a.ID, AccountRegisteredData{
		AccountID:   a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
	})
}
