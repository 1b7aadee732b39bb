package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// placeholderEmailDomain receives the synthetic address of buyers without an email
	placeholderEmailDomain = "erli.invalid"
	// defaultCountryCode is used for addresses without a country
	defaultCountryCode = "PL"
	// addressPlaceholder fills required address fields the marketplace left empty
	addressPlaceholder = "-"
)

// GormCustomerRepository implements integration.CustomerResolver using GORM.
// Customers are matched by email; buyers are created as guests.
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// ResolveCustomer finds the buyer by email or creates a guest customer
func (r *GormCustomerRepository) ResolveCustomer(ctx context.Context, order *integration.MarketplaceOrder) (*integration.Customer, error) {
	if order == nil {
		return nil, integration.ErrValidation
	}
	email, first, last, phone := buyerIdentity(order)

	var existing models.CustomerModel
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return &integration.Customer{ID: existing.ID, Email: existing.Email, SecureKey: existing.SecureKey}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	customer := &models.CustomerModel{
		Email:     email,
		FirstName: first,
		LastName:  last,
		Phone:     phone,
		SecureKey: newSecureKey(),
		IsGuest:   true,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, fmt.Errorf("create customer %s: %w", email, err)
	}
	return &integration.Customer{ID: customer.ID, Email: customer.Email, SecureKey: customer.SecureKey}, nil
}

// CreateAddress stores a new address of the customer. Missing names fall back to
// the customer's, missing required fields to a placeholder.
func (r *GormCustomerRepository) CreateAddress(ctx context.Context, customer *integration.Customer, address *integration.Address, alias string) (int64, error) {
	if customer == nil || customer.ID <= 0 {
		return 0, integration.ErrValidation
	}
	if address == nil {
		address = &integration.Address{}
	}

	var owner models.CustomerModel
	if err := r.db.WithContext(ctx).First(&owner, "id = ?", customer.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, integration.ErrNotFound
		}
		return 0, err
	}

	country := strings.ToUpper(strings.TrimSpace(address.CountryCode))
	if len(country) != 2 {
		country = defaultCountryCode
	}
	phone := strings.TrimSpace(address.Phone)
	if phone == "" {
		phone = owner.Phone
	}

	model := &models.AddressModel{
		CustomerID:  customer.ID,
		Alias:       alias,
		FirstName:   firstNonEmpty(address.FirstName, owner.FirstName, addressPlaceholder),
		LastName:    firstNonEmpty(address.LastName, owner.LastName, addressPlaceholder),
		Company:     strings.TrimSpace(address.CompanyName),
		Address1:    firstNonEmpty(address.Street, addressPlaceholder),
		Postcode:    strings.TrimSpace(address.Zip),
		City:        firstNonEmpty(address.City, addressPlaceholder),
		CountryCode: country,
		Phone:       phone,
		VATNumber:   strings.TrimSpace(address.TaxID),
		CreatedAt:   time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return 0, err
	}
	return model.ID, nil
}

// buyerIdentity extracts email, names and phone of the buyer. Names fall back
// to the shipping address; an order without email gets a synthetic one.
func buyerIdentity(order *integration.MarketplaceOrder) (email, first, last, phone string) {
	if order.User != nil {
		email = strings.ToLower(strings.TrimSpace(order.User.Email))
		first = strings.TrimSpace(order.User.FirstName)
		last = strings.TrimSpace(order.User.LastName)
		phone = strings.TrimSpace(order.User.Phone)
	}
	shipping := order.ShippingAddressCandidate()
	first = firstNonEmpty(first, shipping.FirstName, "ERLI")
	last = firstNonEmpty(last, shipping.LastName, "Klient")
	if phone == "" {
		phone = strings.TrimSpace(shipping.Phone)
	}
	if email == "" {
		email = fmt.Sprintf("erli-%s@%s", strings.ToLower(order.ExternalID()), placeholderEmailDomain)
	}
	return email, first, last, phone
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func newSecureKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var _ integration.CustomerResolver = (*GormCustomerRepository)(nil)
