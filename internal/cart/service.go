package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const pendingOrdersMessage = "You have pending orders. Please complete that first."

// Service exposes the per-user cart.
type Service interface {
	AddOrUpdate(ctx context.Context, userID uuid.UUID, input AddItemInput) (*EntryDTO, error)
	Remove(ctx context.Context, userID uuid.UUID, itemID int64) error
	List(ctx context.Context, userID uuid.UUID) (*View, error)
	Empty(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo    CartRepository
	items   itemLoader
	stock   stockReader
	pending PendingOrderLister
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, items itemLoader, stock stockReader, pending PendingOrderLister) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if items == nil {
		return nil, fmt.Errorf("item loader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	if pending == nil {
		return nil, fmt.Errorf("pending order lister required")
	}
	return &service{repo: repo, items: items, stock: stock, pending: pending}, nil
}

// AddOrUpdate validates the variant against the catalog and current stock,
// then replaces the user's entry for the item.
func (s *service) AddOrUpdate(ctx context.Context, userID uuid.UUID, input AddItemInput) (*EntryDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity should be greater than 0")
	}
	color := strings.TrimSpace(input.ColorOption)
	size := strings.ToUpper(strings.TrimSpace(input.SizeOption))

	item, err := s.items.FindActiveByID(ctx, input.ItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
	}

	if !item.HasColor(color) || !item.HasSize(size) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation,
			"item doesn't have this color and size. chosen color: %s, chosen size: %s. available colors: [%s], available sizes: [%s]",
			color, size, strings.Join(item.ColorOptions, ", "), strings.Join(item.SizeOptions, ", "))
	}

	variant := stock.Variant{ItemID: item.ID, ColorOption: color, SizeOption: size}
	rec, err := s.stock.Get(ctx, variant)
	if err != nil {
		return nil, err
	}
	if rec.Count < input.Quantity {
		return nil, pkgerrors.Newf(pkgerrors.CodeInsufficientStock,
			"not enough stock. requested: %d, available: %d", input.Quantity, rec.Count).
			WithDetails(stock.Shortfall{Variant: variant, Requested: input.Quantity, Available: rec.Count})
	}

	entry := &models.CartEntry{
		UserID:      userID,
		ItemID:      item.ID,
		Quantity:    input.Quantity,
		ColorOption: color,
		SizeOption:  size,
		Price:       item.Price,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart entry")
	}
	entry.Item = item

	dto := toEntryDTO(*entry)
	return &dto, nil
}

func (s *service) Remove(ctx context.Context, userID uuid.UUID, itemID int64) error {
	removed, err := s.repo.Delete(ctx, userID, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart entry")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found in cart")
	}
	return nil
}

// List returns the cart and warns about orders still awaiting payment.
func (s *service) List(ctx context.Context, userID uuid.UUID) (*View, error) {
	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart")
	}
	pending, err := s.pending.ListAwaitingPayment(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending orders")
	}

	view := &View{
		Entries:       make([]EntryDTO, 0, len(entries)),
		Subtotal:      decimal.Zero,
		PendingOrders: make([]PendingOrderDTO, 0, len(pending)),
		Message:       "cart items fetched",
	}
	for _, entry := range entries {
		dto := toEntryDTO(entry)
		view.Entries = append(view.Entries, dto)
		view.Subtotal = view.Subtotal.Add(dto.LineTotal)
	}
	for _, order := range pending {
		view.PendingOrders = append(view.PendingOrders, PendingOrderDTO{
			OrderToken:  order.OrderToken,
			TotalAmount: order.TotalAmount,
			CreatedAt:   order.CreatedAt,
		})
	}
	if len(pending) > 0 {
		view.Message = pendingOrdersMessage
	}
	return view, nil
}

func (s *service) Empty(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "empty cart")
	}
	return nil
}
