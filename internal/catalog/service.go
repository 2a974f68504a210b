package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Service exposes the public catalog and the admin item operations.
type Service interface {
	ListItems(ctx context.Context) ([]ItemDTO, error)
	GetItem(ctx context.Context, itemID int64) (*ItemDTO, error)
	CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error)
	SetStock(ctx context.Context, itemID int64, input SetStockInput) (*StockDTO, error)
	DeleteItem(ctx context.Context, itemID int64) error
}

type service struct {
	items *Repository
	stock *stock.Repository
	tx    db.TxRunner
}

// NewService constructs the catalog service.
func NewService(items *Repository, ledger *stock.Repository, tx db.TxRunner) (Service, error) {
	if items == nil {
		return nil, fmt.Errorf("item repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{items: items, stock: ledger, tx: tx}, nil
}

func (s *service) ListItems(ctx context.Context) ([]ItemDTO, error) {
	items, err := s.items.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list items")
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	records, err := s.stock.ListByItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	byItem := make(map[int64][]models.StockRecord, len(items))
	for _, rec := range records {
		byItem[rec.ItemID] = append(byItem[rec.ItemID], rec)
	}

	out := make([]ItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, toItemDTO(item, byItem[item.ID]))
	}
	return out, nil
}

func (s *service) GetItem(ctx context.Context, itemID int64) (*ItemDTO, error) {
	item, err := s.items.FindActiveByID(ctx, itemID)
	if err != nil {
		return nil, notFoundOr(err, "load item")
	}
	records, err := s.stock.ListByItems(ctx, []int64{itemID})
	if err != nil {
		return nil, err
	}
	dto := toItemDTO(*item, records)
	return &dto, nil
}

// CreateItem stores the item with exactly one stock record per declared
// (color, size) combination.
func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error) {
	item, err := buildItem(input)
	if err != nil {
		return nil, err
	}
	grid, err := stockGrid(item, input.Stock)
	if err != nil {
		return nil, err
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.items.WithTx(tx).Create(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create item")
		}
		for i := range grid {
			grid[i].ItemID = item.ID
		}
		return s.stock.WithTx(tx).Seed(ctx, grid)
	}); err != nil {
		return nil, err
	}

	dto := toItemDTO(*item, grid)
	return &dto, nil
}

func (s *service) SetStock(ctx context.Context, itemID int64, input SetStockInput) (*StockDTO, error) {
	if input.Count == nil || *input.Count < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "count must be zero or more")
	}
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, notFoundOr(err, "load item")
	}
	size := strings.ToUpper(strings.TrimSpace(input.SizeOption))
	color := strings.TrimSpace(input.ColorOption)
	if !item.HasColor(color) || !item.HasSize(size) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant is not offered for this item").
			WithDetails(map[string]any{
				"color_option":  color,
				"size_option":   size,
				"color_options": []string(item.ColorOptions),
				"size_options":  []string(item.SizeOptions),
			})
	}

	rec, err := s.stock.SetCount(ctx, stock.Variant{ItemID: itemID, ColorOption: color, SizeOption: size}, *input.Count)
	if err != nil {
		return nil, err
	}
	return &StockDTO{ColorOption: rec.ColorOption, SizeOption: rec.SizeOption, Count: rec.Count}, nil
}

// DeleteItem hides the item from the catalog. Orders and carts referencing it keep resolving.
func (s *service) DeleteItem(ctx context.Context, itemID int64) error {
	if err := s.items.SoftDelete(ctx, itemID); err != nil {
		return notFoundOr(err, "delete item")
	}
	return nil
}

func buildItem(input CreateItemInput) (*models.Item, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	if !input.Price.Equal(input.Price.Round(2)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price supports at most two decimal places")
	}

	colors, err := uniqueOptions("color_options", input.ColorOptions, strings.TrimSpace)
	if err != nil {
		return nil, err
	}
	sizes, err := uniqueOptions("size_options", input.SizeOptions, func(v string) string {
		return strings.ToUpper(strings.TrimSpace(v))
	})
	if err != nil {
		return nil, err
	}
	for _, size := range sizes {
		if !enums.Size(size).IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is not a valid size", size)
		}
	}

	return &models.Item{
		Name:         name,
		Description:  strings.TrimSpace(input.Description),
		Price:        input.Price.Round(2),
		ColorOptions: pq.StringArray(colors),
		SizeOptions:  pq.StringArray(sizes),
	}, nil
}

func uniqueOptions(field string, values []string, normalize func(string) string) ([]string, error) {
	if len(values) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "at least one entry is required in %s", field)
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, raw := range values {
		v := normalize(raw)
		if v == "" {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s cannot contain empty values", field)
		}
		if _, dup := seen[v]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "duplicate value %q in %s", v, field)
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// stockGrid checks that the declared counts cover every (color, size) pair exactly once.
func stockGrid(item *models.Item, counts []StockCountInput) ([]models.StockRecord, error) {
	expected := len(item.ColorOptions) * len(item.SizeOptions)
	if len(counts) != expected {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation,
			"stock must list %d entries (color_options x size_options), got %d", expected, len(counts))
	}

	seen := make(map[stock.Variant]struct{}, len(counts))
	records := make([]models.StockRecord, 0, len(counts))
	for _, c := range counts {
		color := strings.TrimSpace(c.ColorOption)
		size := strings.ToUpper(strings.TrimSpace(c.SizeOption))
		if !item.HasColor(color) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "stock color %q is not one of the color options", color)
		}
		if !item.HasSize(size) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "stock size %q is not one of the size options", size)
		}
		if c.Count < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock count cannot be negative")
		}
		key := stock.Variant{ColorOption: color, SizeOption: size}
		if _, dup := seen[key]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "stock for %s/%s is listed twice", color, size)
		}
		seen[key] = struct{}{}
		records = append(records, models.StockRecord{ColorOption: color, SizeOption: size, Count: c.Count})
	}
	return records, nil
}
