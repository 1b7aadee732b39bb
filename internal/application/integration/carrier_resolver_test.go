package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/erli-connector/internal/domain/integration"
)

type carrierFixture struct {
	carriers *MockCarrierStore
	mappings *MockCarrierMappingRepository
	config   *fakeConfig
	log      *recordingLog
	resolver *CarrierResolver
}

func newCarrierFixture(config map[string]int64) *carrierFixture {
	f := &carrierFixture{
		carriers: new(MockCarrierStore),
		mappings: new(MockCarrierMappingRepository),
		config:   newFakeConfig(config),
		log:      &recordingLog{},
	}
	f.resolver = NewCarrierResolver(CarrierResolverConfig{
		Carriers: f.carriers,
		Mappings: f.mappings,
		Config:   f.config,
		Journal:  NewJournal(f.log, nil),
	})
	return f
}

func parseOrder(t *testing.T, body string) *integration.MarketplaceOrder {
	t.Helper()
	order, err := integration.ParseMarketplaceOrder([]byte(body))
	require.NoError(t, err)
	return order
}

func activeCarrier(id int64, name string) *integration.Carrier {
	return &integration.Carrier{ID: id, Name: name, Active: true}
}

func TestCarrierResolver_NoDeliveryUsesDefault(t *testing.T) {
	f := newCarrierFixture(map[string]int64{integration.ConfigDefaultCarrier: 7})
	f.carriers.On("FindCarrier", mock.Anything, int64(7)).Return(activeCarrier(7, "Kurier"), nil)

	id, err := f.resolver.Resolve(context.Background(), parseOrder(t, `{"id":"E1"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, []string{KindCarrierSelected}, f.log.kinds())
	f.mappings.AssertNotCalled(t, "FindByTag", mock.Anything, mock.Anything)
}

func TestCarrierResolver_NoDeliveryFallsBackToPlatformDefault(t *testing.T) {
	f := newCarrierFixture(map[string]int64{integration.ConfigPlatformCarrier: 3})
	f.carriers.On("FindCarrier", mock.Anything, int64(3)).Return(activeCarrier(3, "Poczta"), nil)

	id, err := f.resolver.Resolve(context.Background(), parseOrder(t, `{"id":"E1","delivery":{"typeId":"  "}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestCarrierResolver_FoundInMap(t *testing.T) {
	f := newCarrierFixture(nil)
	f.mappings.On("FindByTag", mock.Anything, "dpd_courier").
		Return(&integration.CarrierMapping{LocalCarrierID: 12, ExternalTag: "dpd_courier"}, nil)
	f.carriers.On("FindCarrier", mock.Anything, int64(12)).Return(activeCarrier(12, "DPD"), nil)

	order := parseOrder(t, `{"id":"E2","delivery":{"typeId":"dpd_courier","name":"DPD","price":1299}}`)
	id, err := f.resolver.Resolve(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, int64(12), id)
	assert.Equal(t, []string{KindCarrierFoundInMap, KindCarrierSelected}, f.log.kinds())
	entry, _ := f.log.find(KindCarrierSelected)
	assert.Equal(t, "E2", entry.CorrelationID)
	assert.JSONEq(t, `{"typeId":"dpd_courier","name":"DPD","price":1299}`, entry.Detail)
	f.carriers.AssertNotCalled(t, "ListCarriers", mock.Anything)
}

func TestCarrierResolver_FoundByName(t *testing.T) {
	f := newCarrierFixture(nil)
	f.mappings.On("FindByTag", mock.Anything, "inpost").Return(nil, integration.ErrNotFound)
	f.carriers.On("ListCarriers", mock.Anything).Return([]integration.Carrier{
		{ID: 4, Name: "Paczkomaty InPost", Active: true, Deleted: true},
		{ID: 5, Name: "Kurier", Active: true},
		{ID: 6, Name: "PACZKOMATY INPOST", Active: true},
	}, nil)
	f.mappings.On("Upsert", mock.Anything, &integration.CarrierMapping{
		LocalCarrierID: 6,
		ExternalTag:    "inpost",
		ExternalName:   "Paczkomaty InPost",
	}).Return(nil)
	f.carriers.On("FindCarrier", mock.Anything, int64(6)).Return(activeCarrier(6, "PACZKOMATY INPOST"), nil)

	order := parseOrder(t, `{"id":"E3","delivery":{"typeId":"inpost","name":"Paczkomaty InPost"}}`)
	id, err := f.resolver.Resolve(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, int64(6), id)
	assert.Equal(t, []string{KindCarrierFoundByName, KindCarrierSelected}, f.log.kinds())
	f.mappings.AssertExpectations(t)
}

func TestCarrierResolver_UnusableMappingFallsThroughToName(t *testing.T) {
	f := newCarrierFixture(nil)
	f.mappings.On("FindByTag", mock.Anything, "gls").Return(&integration.CarrierMapping{LocalCarrierID: 9}, nil)
	f.carriers.On("FindCarrier", mock.Anything, int64(9)).Return(&integration.Carrier{ID: 9, Name: "GLS"}, nil)
	f.carriers.On("ListCarriers", mock.Anything).Return([]integration.Carrier{{ID: 10, Name: "gls", Active: true}}, nil)
	f.mappings.On("Upsert", mock.Anything, mock.AnythingOfType("*integration.CarrierMapping")).Return(errors.New("duplicate"))
	f.carriers.On("FindCarrier", mock.Anything, int64(10)).Return(activeCarrier(10, "gls"), nil)

	id, err := f.resolver.Resolve(context.Background(), parseOrder(t, `{"id":"E4","delivery":{"typeId":"gls","name":"GLS"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)
}

func TestCarrierResolver_CreatesCarrier(t *testing.T) {
	f := newCarrierFixture(nil)
	f.mappings.On("FindByTag", mock.Anything, "orlen").Return(nil, integration.ErrNotFound)
	f.carriers.On("CreateCarrier", mock.Anything, mock.MatchedBy(func(spec integration.NewCarrierSpec) bool {
		return spec.Name == "ERLI orlen" &&
			spec.DelayText == "2-4 dni robocze" &&
			spec.MaxWeight.Equal(decimal.NewFromInt(30)) &&
			spec.RangeFrom.IsZero() &&
			spec.RangeTo.Equal(decimal.NewFromInt(10000)) &&
			spec.ZonePrice.Equal(decimal.RequireFromString("8.99"))
	})).Return(int64(21), nil)
	f.mappings.On("Upsert", mock.Anything, &integration.CarrierMapping{LocalCarrierID: 21, ExternalTag: "orlen"}).Return(nil)
	f.carriers.On("FindCarrier", mock.Anything, int64(21)).Return(activeCarrier(21, "ERLI orlen"), nil)

	order := parseOrder(t, `{"id":"E5","delivery":{"typeId":"orlen","price":899}}`)
	id, err := f.resolver.Resolve(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, int64(21), id)
	assert.Equal(t, []string{KindCarrierCreated, KindCarrierSelected}, f.log.kinds())
	created, _ := f.log.find(KindCarrierCreated)
	assert.Equal(t, "21", created.Detail)
	f.carriers.AssertNotCalled(t, "ListCarriers", mock.Anything)
	f.mappings.AssertExpectations(t)
}

func TestCarrierResolver_CreateFailureUsesDefault(t *testing.T) {
	f := newCarrierFixture(map[string]int64{integration.ConfigDefaultCarrier: 7})
	f.carriers.On("ListCarriers", mock.Anything).Return([]integration.Carrier{}, nil)
	f.carriers.On("CreateCarrier", mock.Anything, mock.Anything).Return(int64(0), errors.New("insert failed"))
	f.carriers.On("FindCarrier", mock.Anything, int64(7)).Return(activeCarrier(7, "Kurier"), nil)

	id, err := f.resolver.Resolve(context.Background(), parseOrder(t, `{"id":"E6","delivery":{"name":"Odbiór osobisty"}}`))
	require.NoError(t, err)

	assert.Equal(t, int64(7), id)
	assert.Equal(t, []string{KindCarrierCreateError, KindCarrierSelected}, f.log.kinds())
	f.mappings.AssertNotCalled(t, "FindByTag", mock.Anything, mock.Anything)
	f.mappings.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestCarrierResolver_UnusableResultUsesPlatformDefault(t *testing.T) {
	tests := []struct {
		name     string
		platform int64
		want     int64
	}{
		{"platform default", 3, 3},
		{"hard fallback", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCarrierFixture(map[string]int64{
				integration.ConfigDefaultCarrier:  7,
				integration.ConfigPlatformCarrier: tt.platform,
			})
			f.carriers.On("FindCarrier", mock.Anything, int64(7)).Return(nil, integration.ErrNotFound)

			id, err := f.resolver.Resolve(context.Background(), parseOrder(t, `{"id":"E7"}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
			assert.Equal(t, []string{KindCarrierInvalid, KindCarrierSelected}, f.log.kinds())
		})
	}
}

func TestCarrierResolver_StoreErrors(t *testing.T) {
	t.Run("mapping lookup", func(t *testing.T) {
		f := newCarrierFixture(nil)
		f.mappings.On("FindByTag", mock.Anything, "dpd").Return(nil, errors.New("connection reset"))

		_, err := f.resolver.Resolve(context.Background(), parseOrder(t, `{"id":"E8","delivery":{"typeId":"dpd"}}`))
		assert.Error(t, err)
		assert.Empty(t, f.log.kinds())
	})

	t.Run("carrier list", func(t *testing.T) {
		f := newCarrierFixture(nil)
		f.carriers.On("ListCarriers", mock.Anything).Return(nil, errors.New("connection reset"))

		_, err := f.resolver.Resolve(context.Background(), parseOrder(t, `{"id":"E8","delivery":{"name":"DPD"}}`))
		assert.Error(t, err)
	})
}
