package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-commerce/internal/domain/field"
)

// Input carries coupon fields from an admin request. Nil fields are left
// untouched on update and defaulted or rejected on create.
type Input struct {
	Name             *string
	Code             *string
	Type             *string
	DiscountValue    *decimal.Decimal
	MinimumCartValue *decimal.Decimal
	StartDate        *time.Time
	ExpiryDate       *time.Time
}

// Service implements coupon administration.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a coupon Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates in and stores a new active coupon.
func (s *Service) Create(ctx context.Context, ownerID string, in Input) (*Coupon, error) {
	c, err := Build(ownerID, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, c.Code, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

// Build validates in and returns a new active coupon owned by ownerID. The
// start date defaults to now. Code uniqueness is not checked.
func Build(ownerID string, in Input, now time.Time) (*Coupon, error) {
	if err := checkFields(in, true); err != nil {
		return nil, err
	}

	c := &Coupon{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(*in.Name),
		Code:          NormalizeCode(*in.Code),
		Type:          TypeFlat,
		DiscountValue: *in.DiscountValue,
		StartDate:     now,
		ExpiryDate:    *in.ExpiryDate,
		IsActive:      true,
		OwnerID:       ownerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.MinimumCartValue != nil {
		c.MinimumCartValue = *in.MinimumCartValue
	}
	if in.StartDate != nil {
		c.StartDate = *in.StartDate
	}
	if err := checkRules(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update applies the non-nil fields of in to an existing coupon.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Coupon, error) {
	if err := checkFields(in, false); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Code != nil {
		c.Code = NormalizeCode(*in.Code)
	}
	if in.DiscountValue != nil {
		c.DiscountValue = *in.DiscountValue
	}
	if in.MinimumCartValue != nil {
		c.MinimumCartValue = *in.MinimumCartValue
	}
	if in.StartDate != nil {
		c.StartDate = *in.StartDate
	}
	if in.ExpiryDate != nil {
		c.ExpiryDate = *in.ExpiryDate
	}
	if err := checkRules(c); err != nil {
		return nil, err
	}
	if in.Code != nil {
		if err := s.ensureUnique(ctx, c.Code, c.ID); err != nil {
			return nil, err
		}
	}

	c.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrapf(err, "update coupon %s", id)
	}
	return c, nil
}

// SetActive toggles whether the coupon can be applied.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*Coupon, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.IsActive = active
	c.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrapf(err, "update coupon %s status", id)
	}
	return c, nil
}

// Delete removes a coupon that no order references.
func (s *Service) Delete(ctx context.Context, id string) (*Coupon, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrInUse) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "delete coupon %s", id)
	}
	return c, nil
}

// Get returns a coupon by id.
func (s *Service) Get(ctx context.Context, id string) (*Coupon, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page of all coupons and the total count.
func (s *Service) List(ctx context.Context, p Page) ([]Coupon, int, error) {
	return s.repo.List(ctx, p)
}

// ensureUnique fails with *DuplicateCodeError when code belongs to a coupon
// other than excludeID.
func (s *Service) ensureUnique(ctx context.Context, code, excludeID string) error {
	existing, err := s.repo.FindByCode(ctx, code)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return errors.Wrap(err, "lookup coupon code")
	case existing.ID == excludeID:
		return nil
	default:
		return &DuplicateCodeError{Code: existing.Code}
	}
}

// checkFields validates the shape of the supplied fields. On create the
// required set is enforced; on update only supplied fields are checked.
func checkFields(in Input, create bool) error {
	var fe field.Errors
	if in.Name != nil || create {
		fe.Required("name", deref(in.Name), "Name is required")
	}
	if in.Code != nil || create {
		code := strings.TrimSpace(deref(in.Code))
		switch {
		case code == "":
			fe.Add("couponCode", "Coupon Code is required")
		case len(code) < MinCodeLength:
			fe.Add("couponCode", "Coupon Code must be at least 4 characters long")
		}
	}
	if in.Type != nil && Type(NormalizeCode(*in.Type)) != TypeFlat {
		fe.Add("type", "Invalid coupon type")
	}
	switch {
	case in.DiscountValue == nil && create:
		fe.Add("discountValue", "Discount Value is required")
	case in.DiscountValue != nil && !in.DiscountValue.IsPositive():
		fe.Add("discountValue", "Discount Value must be greater than 0")
	}
	if in.MinimumCartValue != nil && in.MinimumCartValue.IsNegative() {
		fe.Add("minimumCartValue", "Minimum cart value cannot be negative")
	}
	if in.ExpiryDate == nil && create {
		fe.Add("expiryDate", "Expiry date is required")
	}
	return fe.Err()
}

// checkRules validates cross-field invariants of a fully populated coupon.
func checkRules(c *Coupon) error {
	if !c.ExpiryDate.After(c.StartDate) {
		var fe field.Errors
		fe.Add("expiryDate", "Expiry date must be after the start date")
		return fe
	}
	if c.MinimumCartValue.IsPositive() && c.MinimumCartValue.LessThan(c.DiscountValue) {
		return ErrMinimumBelowDiscount
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
