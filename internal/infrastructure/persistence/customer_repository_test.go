package persistence

import (
	"context"
	"testing"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormCustomerRepository_ResolveCustomer(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewGormCustomerRepository(db)

	order := &integration.MarketplaceOrder{
		ID:   "ERLI-1",
		User: &integration.OrderUser{Email: " Jan@Example.com ", FirstName: "Jan", LastName: "Kowalski"},
	}

	first, err := repo.ResolveCustomer(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, "jan@example.com", first.Email)
	assert.Len(t, first.SecureKey, 32)

	t.Run("same email resolves the same customer", func(t *testing.T) {
		again, err := repo.ResolveCustomer(ctx, order)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, first.SecureKey, again.SecureKey)
	})

	t.Run("buyer without email gets a placeholder address", func(t *testing.T) {
		anonymous := &integration.MarketplaceOrder{
			ID:              "AbC-9",
			ShippingAddress: &integration.Address{FirstName: "Anna", LastName: "Nowak"},
		}
		c, err := repo.ResolveCustomer(ctx, anonymous)
		require.NoError(t, err)
		assert.Equal(t, "erli-abc-9@erli.invalid", c.Email)

		var stored models.CustomerModel
		require.NoError(t, db.First(&stored, "id = ?", c.ID).Error)
		assert.Equal(t, "Anna", stored.FirstName)
		assert.Equal(t, "Nowak", stored.LastName)
		assert.True(t, stored.IsGuest)
	})

	t.Run("nil order", func(t *testing.T) {
		_, err := repo.ResolveCustomer(ctx, nil)
		assert.ErrorIs(t, err, integration.ErrValidation)
	})
}

func TestGormCustomerRepository_CreateAddress(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewGormCustomerRepository(db)

	customer, err := repo.ResolveCustomer(ctx, &integration.MarketplaceOrder{
		ID:   "1",
		User: &integration.OrderUser{Email: "a@b.pl", FirstName: "Jan", LastName: "Kowalski", Phone: "500100200"},
	})
	require.NoError(t, err)

	t.Run("full address", func(t *testing.T) {
		id, err := repo.CreateAddress(ctx, customer, &integration.Address{
			FirstName: "Ewa", LastName: "Nowak", CompanyName: "ACME", Street: "Prosta 1",
			Zip: "00-001", City: "Warszawa", CountryCode: "pl", TaxID: "5250000000",
		}, "ERLI Invoice")
		require.NoError(t, err)

		var a models.AddressModel
		require.NoError(t, db.First(&a, "id = ?", id).Error)
		assert.Equal(t, "ERLI Invoice", a.Alias)
		assert.Equal(t, "Ewa", a.FirstName)
		assert.Equal(t, "PL", a.CountryCode)
		assert.Equal(t, "5250000000", a.VATNumber)
		assert.Equal(t, "500100200", a.Phone)
	})

	t.Run("empty address falls back to customer and placeholders", func(t *testing.T) {
		id, err := repo.CreateAddress(ctx, customer, nil, "ERLI Delivery")
		require.NoError(t, err)

		var a models.AddressModel
		require.NoError(t, db.First(&a, "id = ?", id).Error)
		assert.Equal(t, "Jan", a.FirstName)
		assert.Equal(t, "Kowalski", a.LastName)
		assert.Equal(t, "-", a.Address1)
		assert.Equal(t, "-", a.City)
		assert.Equal(t, "PL", a.CountryCode)
	})

	t.Run("unknown customer", func(t *testing.T) {
		_, err := repo.CreateAddress(ctx, &integration.Customer{ID: 999}, &integration.Address{}, "x")
		assert.ErrorIs(t, err, integration.ErrNotFound)
	})
}
