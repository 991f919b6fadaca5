package address

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/kart-commerce/internal/domain/field"
)

// ErrNotFound is returned for missing addresses and for addresses owned by
// someone else.
var ErrNotFound = errors.New("Address does not exist")

// ErrInUse is returned when deleting an address that orders still reference.
var ErrInUse = errors.New("Address is used by existing orders and cannot be deleted")

// Address is a delivery address owned by a single user.
type Address struct {
	ID           string
	OwnerID      string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	Country      string
	Pincode      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Page selects a window of a listing.
type Page struct {
	Offset int
	Limit  int
}

// Repository persists addresses. Every lookup is scoped to the owner.
type Repository interface {
	Create(ctx context.Context, a *Address) error
	Get(ctx context.Context, ownerID, id string) (*Address, error)
	List(ctx context.Context, ownerID string, p Page) ([]Address, int, error)
	// Delete returns ErrInUse when an order references the address.
	Delete(ctx context.Context, ownerID, id string) error
}

// Input carries the fields of a new address.
type Input struct {
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	Country      string
	Pincode      string
}

// Service manages the address book.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an address Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create stores a new address for ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, in Input) (*Address, error) {
	var fe field.Errors
	fe.Required("addressLine1", in.AddressLine1, "Address line 1 is required")
	fe.Required("city", in.City, "City is required")
	fe.Required("state", in.State, "State is required")
	fe.Required("country", in.Country, "Country is required")
	fe.Required("pincode", in.Pincode, "Pincode is required")
	if err := fe.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	a := &Address{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		AddressLine1: strings.TrimSpace(in.AddressLine1),
		AddressLine2: strings.TrimSpace(in.AddressLine2),
		City:         strings.TrimSpace(in.City),
		State:        strings.TrimSpace(in.State),
		Country:      strings.TrimSpace(in.Country),
		Pincode:      strings.TrimSpace(in.Pincode),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "create address")
	}
	return a, nil
}

// Get returns the owner's address.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*Address, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// List returns one page of the owner's addresses.
func (s *Service) List(ctx context.Context, ownerID string, p Page) ([]Address, int, error) {
	return s.repo.List(ctx, ownerID, p)
}

// Delete removes the owner's address and returns what was removed.
func (s *Service) Delete(ctx context.Context, ownerID, id string) (*Address, error) {
	a, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return a, nil
}
