package address

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-commerce/internal/domain/field"
)

type memRepo struct {
	byID map[string]Address
}

func (m *memRepo) Create(_ context.Context, a *Address) error {
	m.byID[a.ID] = *a
	return nil
}

func (m *memRepo) Get(_ context.Context, ownerID, id string) (*Address, error) {
	a, ok := m.byID[id]
	if !ok || a.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *memRepo) List(_ context.Context, ownerID string, _ Page) ([]Address, int, error) {
	var out []Address
	for _, a := range m.byID {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (m *memRepo) Delete(_ context.Context, ownerID, id string) error {
	if a, ok := m.byID[id]; !ok || a.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func TestService_Create(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := &memRepo{byID: make(map[string]Address)}
	svc := NewService(repo)
	svc.now = func() time.Time { return now }

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Create(context.Background(), "u1", Input{AddressLine1: "1 Main St"})
		var fe field.Errors
		require.ErrorAs(t, err, &fe)
		names := make([]string, len(fe))
		for i, e := range fe {
			names[i] = e.Name
		}
		assert.Equal(t, []string{"city", "state", "country", "pincode"}, names)
	})

	t.Run("trims and stores", func(t *testing.T) {
		a, err := svc.Create(context.Background(), "u1", Input{
			AddressLine1: " 1 Main St ",
			City:         "Pune",
			State:        "MH",
			Country:      "India",
			Pincode:      "411001",
		})
		require.NoError(t, err)
		assert.Equal(t, "1 Main St", a.AddressLine1)
		assert.Equal(t, now, a.CreatedAt)
		assert.Contains(t, repo.byID, a.ID)
	})
}

func TestService_OwnerScoping(t *testing.T) {
	repo := &memRepo{byID: map[string]Address{
		"addr-1": {ID: "addr-1", OwnerID: "u1", City: "Pune"},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Get(ctx, "u2", "addr-1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Delete(ctx, "u2", "addr-1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, repo.byID, "addr-1")

	a, err := svc.Delete(ctx, "u1", "addr-1")
	require.NoError(t, err)
	assert.Equal(t, "Pune", a.City)
	assert.Empty(t, repo.byID)
}
