// Package market implements marketplace operations on top of a data.Client.
package market

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"

	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/notify"
	"github.com/roach88/marketdb/internal/record"
	"github.com/roach88/marketdb/internal/seed"
)

var (
	// ErrUnauthenticated is returned when a write has no acting user.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when the actor neither sells the product nor
	// holds SUPER_ADMIN.
	ErrForbidden = errors.New("forbidden")
)

// Actor is the signed-in user performing an operation.
type Actor struct {
	ID   string
	Role string
}

// CanModify reports whether a may change a product sold by sellerID.
func (a Actor) CanModify(sellerID string) bool {
	if a.Role == seed.RoleSuperAdmin {
		return true
	}
	return a.ID != "" && a.ID == sellerID
}

// ProductService reads and modifies products.
type ProductService struct {
	products data.Model
	users    data.Model
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewProductService binds the service to the client's product and user
// models. A nil notifier discards mail.
func NewProductService(client data.Client, notifier notify.Notifier, logger *slog.Logger) (*ProductService, error) {
	products, err := client.Model("product")
	if err != nil {
		return nil, err
	}
	users, err := client.Model("user")
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductService{
		products: products,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Get returns the product with id or an error wrapping data.ErrNotFound.
func (s *ProductService) Get(ctx context.Context, id string) (record.Record, error) {
	product, err := s.products.FindUnique(ctx, data.ByID(id))
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, data.Wrap("findUnique", "product", fmt.Errorf("%w: %s", data.ErrNotFound, id))
	}
	return product, nil
}

// authorize loads the product and checks that actor may modify it.
func (s *ProductService) authorize(ctx context.Context, actor Actor, id string) (record.Record, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	seller, _ := product.String("sellerId")
	if !actor.CanModify(seller) {
		return nil, ErrForbidden
	}
	return product, nil
}

// Update applies patch to the product and notifies its seller. Notification
// failures are logged and do not fail the update.
func (s *ProductService) Update(ctx context.Context, actor Actor, id string, patch map[string]any) (record.Record, error) {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}
	updated, err := s.products.Update(ctx, data.ByID(id), patch)
	if err != nil {
		return nil, err
	}

	if err := s.notifySeller(ctx, updated); err != nil {
		s.logger.ErrorContext(ctx, "mail error", "product", id, "error", err)
	}
	return updated, nil
}

func (s *ProductService) notifySeller(ctx context.Context, product record.Record) error {
	sellerID, ok := product.String("sellerId")
	if !ok || sellerID == "" {
		return nil
	}
	seller, err := s.users.FindUnique(ctx, data.ByID(sellerID))
	if err != nil {
		return fmt.Errorf("look up seller: %w", err)
	}
	if seller == nil {
		return nil
	}
	email, _ := seller.String("email")
	title, _ := product.String("title")
	return s.notifier.Send(ctx, notify.Message{
		To:      email,
		Subject: "Product updated",
		HTML:    fmt.Sprintf("<p>Your product \"%s\" was updated.</p>", html.EscapeString(title)),
	})
}

// Delete removes the product.
func (s *ProductService) Delete(ctx context.Context, actor Actor, id string) error {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	_, err := s.products.Delete(ctx, data.ByID(id))
	return err
}
