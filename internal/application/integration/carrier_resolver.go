package integration

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/erp/erli-connector/internal/domain/integration"
)

const (
	createdCarrierDelay = "2-4 dni robocze"
	// fallbackCarrierID is used when nothing else resolves to a carrier
	fallbackCarrierID int64 = 1
)

var (
	createdCarrierMaxWeight = decimal.NewFromInt(30)
	createdCarrierRangeTo   = decimal.NewFromInt(10000)
)

// CarrierResolverConfig holds the dependencies of the CarrierResolver
type CarrierResolverConfig struct {
	Carriers integration.CarrierStore
	Mappings integration.CarrierMappingRepository
	Config   integration.ConfigStore
	Journal  *Journal
	Logger   *zap.Logger
}

// CarrierResolver finds, or creates, the local carrier of a marketplace delivery method.
type CarrierResolver struct {
	carriers integration.CarrierStore
	mappings integration.CarrierMappingRepository
	config   integration.ConfigStore
	journal  *Journal
	logger   *zap.Logger
}

// NewCarrierResolver creates a CarrierResolver.
func NewCarrierResolver(config CarrierResolverConfig) *CarrierResolver {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Journal == nil {
		config.Journal = NewJournal(nil, config.Logger)
	}
	return &CarrierResolver{
		carriers: config.Carriers,
		mappings: config.Mappings,
		config:   config.Config,
		journal:  config.Journal,
		logger:   config.Logger,
	}
}

// Resolve returns a usable carrier id for the delivery of order. Lookup goes
// mapping by tag, then name, then creation; the result is re-validated and
// replaced by the platform default when unusable.
func (r *CarrierResolver) Resolve(ctx context.Context, order *integration.MarketplaceOrder) (int64, error) {
	extID := order.ExternalID()
	tag := order.Delivery.Tag()
	name := order.Delivery.DisplayName()

	r.logger.Debug("Resolving carrier",
		zap.String("erli_order_id", extID),
		zap.String("delivery_tag", tag),
		zap.String("delivery_name", name),
	)

	var carrierID int64
	if tag == "" && name == "" {
		id, err := r.defaultCarrier(ctx)
		if err != nil {
			return 0, err
		}
		carrierID = id
	} else {
		id, err := r.lookup(ctx, extID, tag, name)
		if err != nil {
			return 0, err
		}
		if id == 0 {
			id = r.create(ctx, order, tag, name)
		}
		carrierID = id
	}

	carrierID, err := r.ensureUsable(ctx, extID, carrierID)
	if err != nil {
		return 0, err
	}
	r.journal.Info(ctx, KindCarrierSelected, extID,
		fmt.Sprintf("Carrier %d selected for ERLI order", carrierID), order.DeliveryJSON())
	return carrierID, nil
}

// lookup returns 0 when neither the mapping nor the name finds a usable carrier.
func (r *CarrierResolver) lookup(ctx context.Context, extID, tag, name string) (int64, error) {
	if tag != "" {
		mapping, err := r.mappings.FindByTag(ctx, tag)
		switch {
		case err == nil:
			carrier, err := r.carriers.FindCarrier(ctx, mapping.LocalCarrierID)
			if err != nil && !errors.Is(err, integration.ErrNotFound) {
				return 0, fmt.Errorf("failed to load mapped carrier %d: %w", mapping.LocalCarrierID, err)
			}
			if carrier.IsUsable() {
				r.journal.Info(ctx, KindCarrierFoundInMap, extID,
					fmt.Sprintf("Carrier %d found in map for tag %s", carrier.ID, tag), "")
				return carrier.ID, nil
			}
		case !errors.Is(err, integration.ErrNotFound):
			return 0, fmt.Errorf("failed to look up carrier mapping %q: %w", tag, err)
		}
	}

	if name == "" {
		return 0, nil
	}
	carriers, err := r.carriers.ListCarriers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list carriers: %w", err)
	}
	fold := cases.Fold()
	wanted := fold.String(name)
	for i := range carriers {
		c := &carriers[i]
		if !c.IsUsable() || fold.String(c.Name) != wanted {
			continue
		}
		if tag != "" {
			if err := r.mappings.Upsert(ctx, &integration.CarrierMapping{
				LocalCarrierID: c.ID,
				ExternalTag:    tag,
				ExternalName:   name,
			}); err != nil {
				r.logger.Warn("Failed to store carrier mapping", zap.Int64("carrier_id", c.ID), zap.Error(err))
			}
		}
		r.journal.Info(ctx, KindCarrierFoundByName, extID,
			fmt.Sprintf("Carrier %d found by name %q", c.ID, name), "")
		return c.ID, nil
	}
	return 0, nil
}

// create adds a carrier for the delivery method, falling back to the default on failure.
func (r *CarrierResolver) create(ctx context.Context, order *integration.MarketplaceOrder, tag, name string) int64 {
	extID := order.ExternalID()
	carrierName := name
	if carrierName == "" {
		carrierName = "ERLI " + tag
	}
	spec := integration.NewCarrierSpec{
		Name:      carrierName,
		DelayText: createdCarrierDelay,
		MaxWeight: createdCarrierMaxWeight,
		RangeFrom: decimal.Zero,
		RangeTo:   createdCarrierRangeTo,
		ZonePrice: MinorToMajor(order.Delivery.PriceMinor()),
	}
	r.logger.Debug("Creating carrier", zap.String("erli_order_id", extID), zap.String("name", carrierName))

	id, err := r.carriers.CreateCarrier(ctx, spec)
	if err != nil {
		r.journal.Error(ctx, KindCarrierCreateError, extID,
			fmt.Sprintf("Failed to create carrier %q: %v", carrierName, err), order.DeliveryJSON())
		fallback, ferr := r.defaultCarrier(ctx)
		if ferr != nil {
			r.logger.Warn("Failed to read default carrier", zap.Error(ferr))
			return 0
		}
		return fallback
	}

	if tag != "" {
		if err := r.mappings.Upsert(ctx, &integration.CarrierMapping{
			LocalCarrierID: id,
			ExternalTag:    tag,
			ExternalName:   name,
		}); err != nil {
			r.logger.Warn("Failed to store carrier mapping", zap.Int64("carrier_id", id), zap.Error(err))
		}
	}
	r.journal.Info(ctx, KindCarrierCreated, extID,
		fmt.Sprintf("Carrier %d created as %q", id, carrierName), strconv.FormatInt(id, 10))
	return id
}

func (r *CarrierResolver) ensureUsable(ctx context.Context, extID string, carrierID int64) (int64, error) {
	if carrierID > 0 {
		carrier, err := r.carriers.FindCarrier(ctx, carrierID)
		if err != nil && !errors.Is(err, integration.ErrNotFound) {
			return 0, fmt.Errorf("failed to load carrier %d: %w", carrierID, err)
		}
		if carrier.IsUsable() {
			return carrierID, nil
		}
	}

	fallback, err := r.config.GetInt(ctx, integration.ConfigPlatformCarrier)
	if err != nil {
		return 0, err
	}
	if fallback <= 0 {
		fallback = fallbackCarrierID
	}
	r.journal.Warn(ctx, KindCarrierInvalid, extID,
		fmt.Sprintf("Carrier %d is not usable, using %d", carrierID, fallback), "")
	return fallback, nil
}

// defaultCarrier returns the configured marketplace carrier, else the platform default.
func (r *CarrierResolver) defaultCarrier(ctx context.Context) (int64, error) {
	id, err := r.config.GetInt(ctx, integration.ConfigDefaultCarrier)
	if err != nil {
		return 0, err
	}
	if id > 0 {
		return id, nil
	}
	return r.config.GetInt(ctx, integration.ConfigPlatformCarrier)
}
