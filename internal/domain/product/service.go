package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-commerce/internal/domain/field"
)

// ErrDuplicateCategory is returned when a category name is already taken.
var ErrDuplicateCategory = errors.New("Category already exists")

// Input holds the fields of a product create or update request. Nil fields
// are left untouched on update and rejected on create when required.
type Input struct {
	Name        *string
	Description *string
	MainImage   *string
	Price       *decimal.Decimal
	Stock       *int
	CategoryID  *string
}

// Service implements catalog administration and lookups.
type Service struct {
	products   Repository
	categories CategoryRepository
	now        func() time.Time
}

// NewService creates a catalog Service.
func NewService(products Repository, categories CategoryRepository) *Service {
	return &Service{products: products, categories: categories, now: time.Now}
}

// List returns one page of products and the total number of matches.
func (s *Service) List(ctx context.Context, f Filter) ([]Product, int, error) {
	return s.products.List(ctx, f)
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// Create validates in and stores a new product owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, in Input) (*Product, error) {
	if err := validate(in, true); err != nil {
		return nil, err
	}
	if _, err := s.categories.GetCategory(ctx, *in.CategoryID); err != nil {
		return nil, err
	}

	now := s.now()
	p := &Product{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(*in.Name),
		Price:      *in.Price,
		Stock:      *in.Stock,
		CategoryID: *in.CategoryID,
		OwnerID:    ownerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.MainImage != nil {
		p.MainImage = strings.TrimSpace(*in.MainImage)
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update applies the non-nil fields of in to the product with the given id.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Product, error) {
	if err := validate(in, false); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.CategoryID != nil && *in.CategoryID != p.CategoryID {
		if _, err := s.categories.GetCategory(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
		p.CategoryID = *in.CategoryID
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.MainImage != nil {
		p.MainImage = strings.TrimSpace(*in.MainImage)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	p.UpdatedAt = s.now()

	if err := s.products.Update(ctx, p); err != nil {
		return nil, errors.Wrapf(err, "update product %s", id)
	}
	return p, nil
}

// Categories returns every category ordered by name.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.categories.ListCategories(ctx)
}

// CreateCategory stores a new category. Names are unique case-insensitively.
func (s *Service) CreateCategory(ctx context.Context, ownerID, name string) (*Category, error) {
	var fe field.Errors
	if !fe.Required("name", name, "Category name is required") {
		return nil, fe
	}

	now := s.now()
	c := &Category{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCategory) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create category")
	}
	return c, nil
}

func validate(in Input, create bool) error {
	var fe field.Errors
	if in.Name != nil || create {
		fe.Required("name", deref(in.Name), "Name is required")
	}
	if in.CategoryID != nil || create {
		fe.Required("category", deref(in.CategoryID), "Category is required")
	}
	switch {
	case in.Price == nil && create:
		fe.Add("price", "Price is required")
	case in.Price != nil && in.Price.IsNegative():
		fe.Add("price", "Price cannot be negative")
	}
	switch {
	case in.Stock == nil && create:
		fe.Add("stock", "Stock is required")
	case in.Stock != nil && *in.Stock < 0:
		fe.Add("stock", "Stock cannot be negative")
	}
	return fe.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
