package event

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront/internal/storefront"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/money"
)

var (
	TopicCartUpdated = pkgkafka.Topic("cart", "updated")
	TopicCartCleared = pkgkafka.Topic("cart", "cleared")
)

// Event types, also the aggregate type and source stamped on every cart
// event.
const (
	TypeCartUpdated   = "cart.updated"
	TypeCartCleared   = "cart.cleared"
	AggregateTypeCart = "cart"
	SourceCartService = "cart-service"
)

// CartUpdatedData is the cart.updated payload: the basket as saved.
type CartUpdatedData struct {
	CartID       string         `json:"cart_id"`
	BuyerID      string         `json:"buyer_id"`
	Version      int            `json:"version"`
	Items        []CartItemData `json:"items"`
	ItemCount    int            `json:"item_count"`
	TotalAmount  int64          `json:"total_amount"`
	TotalDisplay string         `json:"total_display"`
}

// CartItemData is one line of a cart payload. Price is in cents.
type CartItemData struct {
	ProductID int    `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// CartClearedData is the cart.cleared payload.
type CartClearedData struct {
	BuyerID string `json:"buyer_id"`
}

// Publisher is the Kafka side of the cart events.
type Publisher = pkgkafka.Publisher

// Producer raises cart domain events. Each event is keyed by buyer so one
// buyer's events stay ordered.
type Producer struct {
	emit *pkgkafka.Emitter
}

func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{emit: pkgkafka.NewEmitter(kafka, AggregateTypeCart, SourceCartService, logger)}
}

// PublishCartUpdated announces the saved state of cart.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *storefront.Cart) error {
	return p.emit.Emit(ctx, TopicCartUpdated, TypeCartUpdated, cart.BuyerID, updatedData(cart))
}

// PublishCartCleared announces that buyerID's cart is gone.
func (p *Producer) PublishCartCleared(ctx context.Context, buyerID string) error {
	return p.emit.Emit(ctx, TopicCartCleared, TypeCartCleared, buyerID, CartClearedData{BuyerID: buyerID})
}

func updatedData(cart *storefront.Cart) CartUpdatedData {
	lines := make([]CartItemData, 0, len(cart.Items))
	for _, it := range cart.Items {
		lines = append(lines, CartItemData{ProductID: it.ProductID, Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}
	total := cart.TotalAmount()
	return CartUpdatedData{
		CartID:       cart.ID,
		BuyerID:      cart.BuyerID,
		Version:      cart.Version,
		Items:        lines,
		ItemCount:    cart.ItemCount(),
		TotalAmount:  total,
		TotalDisplay: money.Format(total),
	}
}
