package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/erli-connector/internal/domain/integration"
)

const testSecureDomain = "shop.example"

type mapperFixture struct {
	catalog    *MockCatalogReader
	categories *MockCategoryMapper
	shipping   *MockShippingMapper
	config     *fakeConfig
	mapper     *ListingMapper
}

func newMapperFixture() *mapperFixture {
	f := &mapperFixture{
		catalog:    new(MockCatalogReader),
		categories: new(MockCategoryMapper),
		shipping:   new(MockShippingMapper),
		config:     newFakeConfig(nil),
	}
	f.mapper = NewListingMapper(ListingMapperConfig{
		Catalog:      f.catalog,
		Images:       storefrontImages{},
		Categories:   f.categories,
		Shipping:     f.shipping,
		Config:       f.config,
		SecureDomain: testSecureDomain,
	})
	return f
}

func imageURL(id int64, rewrite string) string {
	return fmt.Sprintf("https://%s/%d-large_default/%s.jpg", testSecureDomain, id, rewrite)
}

func mug() *integration.CatalogProduct {
	return &integration.CatalogProduct{
		ID:            10,
		LocalizedName: "Kubek",
		Description:   "<p>Ceramiczny</p>",
		LinkRewrite:   "kubek",
		Reference:     "KB-1",
		EAN13:         "5901234123457",
		Active:        true,
		WeightKg:      decimal.RequireFromString("0.35"),
	}
}

func TestListingMapper_Map_Product(t *testing.T) {
	f := newMapperFixture()
	ctx := context.Background()

	f.catalog.On("LoadProduct", mock.Anything, int64(10), int64(1)).Return(mug(), nil)
	f.catalog.On("CoverImageID", mock.Anything, int64(10)).Return(int64(3), nil)
	f.catalog.On("ProductImageIDs", mock.Anything, int64(10), int64(1)).Return([]int64{1, 3, 2}, nil)
	f.catalog.On("AvailableQuantity", mock.Anything, int64(10), int64(0)).Return(5, nil)
	f.catalog.On("GrossPrice", mock.Anything, int64(10), int64(0)).Return(decimal.RequireFromString("19.999"), nil)
	f.categories.On("MapProductCategories", mock.Anything, int64(10), int64(1)).Return([]integration.ExternalCategory{
		{Source: "marketplace", Breadcrumb: []integration.CategoryCrumb{{ID: "123"}}},
	}, nil)
	f.shipping.On("MapTagsForProduct", mock.Anything, int64(10), int64(1)).Return([]string{"  ", " dpd "}, nil)
	require.NoError(t, f.config.Set(ctx, integration.ConfigDispatchTimeDays, "3"))

	payload, err := f.mapper.Map(ctx, 10, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, "10", payload.ExternalID)
	assert.Equal(t, "Kubek", payload.Name)
	assert.Equal(t, "<p>Ceramiczny</p>", payload.Description)
	assert.Equal(t, "5901234123457", payload.EAN)
	assert.Equal(t, "KB-1", payload.SKU)
	assert.Equal(t, integration.ListingStatusActive, payload.Status)
	assert.Equal(t, 5, payload.Stock)
	assert.Equal(t, int64(2000), payload.Price)
	assert.Equal(t, int64(350), payload.Weight)
	assert.Equal(t, 3, payload.DispatchTime.Period)
	assert.Equal(t, "dpd", payload.DeliveryPriceList)
	assert.Len(t, payload.ExternalCategories, 1)
	assert.Equal(t, []integration.ListingImage{
		{URL: imageURL(3, "kubek")},
		{URL: imageURL(1, "kubek")},
		{URL: imageURL(2, "kubek")},
	}, payload.Images)
	assert.Nil(t, payload.ExternalAttributes)
	assert.Nil(t, payload.ExternalVariantGroup)

	f.catalog.AssertNotCalled(t, "VariantImageIDs", mock.Anything, mock.Anything)
}

func TestListingMapper_Map_Names(t *testing.T) {
	tests := []struct {
		name      string
		localized string
		fallback  string
		reference string
		want      string
	}{
		{"localized", "Kubek", "Mug", "KB-1", "Kubek"},
		{"fallback name", "", "Mug", "KB-1", "Mug"},
		{"short name uses reference", "Ku", "", "KB-1", "KB-1"},
		{"short reference uses id", "ab", "", "K1", "Produkt #10"},
		{"trimmed before counting", "  ab  ", "", "", "Produkt #10"},
		{"counts runes", "Łżą", "", "", "Łżą"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mug()
			p.LocalizedName = tt.localized
			p.FallbackName = tt.fallback
			p.Reference = tt.reference
			assert.Equal(t, tt.want, baseListingName(p))
		})
	}
}

func TestListingMapper_Map_Variant(t *testing.T) {
	f := newMapperFixture()
	ctx := context.Background()
	vid := int64(44)

	shirt := mug()
	shirt.LocalizedName = "Koszulka"
	shirt.LinkRewrite = "koszulka"
	f.catalog.On("LoadProduct", mock.Anything, int64(10), int64(1)).Return(shirt, nil)
	f.catalog.On("LoadVariant", mock.Anything, vid).Return(&integration.CatalogVariant{ID: vid, ProductID: 10, EAN13: "111"}, nil)
	f.catalog.On("ProductAttributeGroups", mock.Anything, int64(10), int64(1)).Return([]integration.AttributeGroup{
		{ID: 2, Name: "Rozmiar", Position: 1},
		{ID: 1, Name: "Kolor", Position: 0},
	}, nil)
	f.catalog.On("VariantAttributeValues", mock.Anything, vid, int64(1)).Return([]integration.VariantAttributeValue{
		{GroupID: 2, Value: "XL"},
		{GroupID: 1, Value: "Czerwony"},
	}, nil)
	f.catalog.On("VariantImageIDs", mock.Anything, vid).Return([]int64{}, nil)
	f.catalog.On("CombinationImageIDs", mock.Anything, int64(10), vid, int64(1)).Return([]int64{9}, nil)
	f.catalog.On("AvailableQuantity", mock.Anything, int64(10), vid).Return(-2, nil)
	f.catalog.On("GrossPrice", mock.Anything, int64(10), vid).Return(decimal.RequireFromString("49.90"), nil)
	f.categories.On("MapProductCategories", mock.Anything, int64(10), int64(1)).Return(nil, nil)
	f.shipping.On("MapTagsForProduct", mock.Anything, int64(10), int64(1)).Return(nil, errors.New("no map"))

	payload, err := f.mapper.Map(ctx, 10, 1, &vid)
	require.NoError(t, err)

	assert.Equal(t, "10-44", payload.ExternalID)
	assert.Equal(t, "Koszulka - Czerwony - XL", payload.Name)
	assert.Equal(t, "111", payload.EAN)
	assert.Equal(t, "KB-1", payload.SKU)
	assert.Equal(t, 0, payload.Stock)
	assert.Equal(t, integration.ListingStatusInactive, payload.Status)
	assert.Equal(t, int64(4990), payload.Price)
	assert.Equal(t, 1, payload.DispatchTime.Period)
	assert.Empty(t, payload.DeliveryPriceList)
	assert.Equal(t, []integration.ListingImage{{URL: imageURL(9, "koszulka")}}, payload.Images)

	require.Len(t, payload.ExternalAttributes, 2)
	assert.Equal(t, "1", payload.ExternalAttributes[0].ID)
	assert.Equal(t, []string{"Czerwony"}, payload.ExternalAttributes[0].Values)
	assert.Equal(t, 1, payload.ExternalAttributes[1].Index)

	require.NotNil(t, payload.ExternalVariantGroup)
	raw, err := json.Marshal(payload.ExternalVariantGroup.Attributes)
	require.NoError(t, err)
	assert.JSONEq(t, `["thumbnail", 1]`, string(raw))

	f.catalog.AssertNotCalled(t, "CoverImageID", mock.Anything, mock.Anything)
}

func TestListingMapper_Map_VariantLookupFailureKeepsProductCodes(t *testing.T) {
	f := newMapperFixture()
	vid := int64(44)

	f.catalog.On("LoadProduct", mock.Anything, int64(10), int64(1)).Return(mug(), nil)
	f.catalog.On("LoadVariant", mock.Anything, vid).Return(nil, integration.ErrNotFound)
	f.catalog.On("ProductAttributeGroups", mock.Anything, int64(10), int64(1)).Return([]integration.AttributeGroup{}, nil)
	f.catalog.On("VariantAttributeValues", mock.Anything, vid, int64(1)).Return([]integration.VariantAttributeValue{}, nil)
	f.catalog.On("VariantImageIDs", mock.Anything, vid).Return(nil, errors.New("boom"))
	f.catalog.On("CombinationImageIDs", mock.Anything, int64(10), vid, int64(1)).Return([]int64{0, -1}, nil)
	f.catalog.On("CoverImageID", mock.Anything, int64(10)).Return(int64(0), nil)
	f.catalog.On("ProductImageIDs", mock.Anything, int64(10), int64(1)).Return([]int64{4}, nil)
	f.catalog.On("AvailableQuantity", mock.Anything, int64(10), vid).Return(1, nil)
	f.catalog.On("GrossPrice", mock.Anything, int64(10), vid).Return(decimal.NewFromInt(10), nil)
	f.categories.On("MapProductCategories", mock.Anything, int64(10), int64(1)).Return(nil, nil)
	f.shipping.On("MapTagsForProduct", mock.Anything, int64(10), int64(1)).Return(nil, nil)

	payload, err := f.mapper.Map(context.Background(), 10, 1, &vid)
	require.NoError(t, err)

	assert.Equal(t, "5901234123457", payload.EAN)
	assert.Equal(t, "KB-1", payload.SKU)
	assert.Equal(t, "Kubek", payload.Name)
	assert.Equal(t, []integration.ListingImage{{URL: imageURL(4, "kubek")}}, payload.Images)
	assert.Nil(t, payload.ExternalAttributes)
	assert.Nil(t, payload.ExternalVariantGroup)
}

func TestListingMapper_Map_Pack(t *testing.T) {
	f := newMapperFixture()

	pack := mug()
	pack.IsPack = true
	f.catalog.On("LoadProduct", mock.Anything, int64(10), int64(1)).Return(pack, nil)
	f.catalog.On("CoverImageID", mock.Anything, int64(10)).Return(int64(3), nil)
	f.catalog.On("ProductImageIDs", mock.Anything, int64(10), int64(1)).Return([]int64{3}, nil)
	f.catalog.On("PackItems", mock.Anything, int64(10), int64(1)).Return([]integration.PackItem{
		{ProductID: 20, Name: "Łyżka <srebrna>", Quantity: 0},
		{ProductID: 21, Name: "", Quantity: 2},
		{ProductID: 22, Name: "Widelec", Quantity: 3},
	}, nil)
	f.catalog.On("CoverImageID", mock.Anything, int64(20)).Return(int64(50), nil)
	f.catalog.On("CoverImageID", mock.Anything, int64(21)).Return(int64(0), nil)
	f.catalog.On("CoverImageID", mock.Anything, int64(22)).Return(int64(3), nil)
	f.catalog.On("AvailableQuantity", mock.Anything, int64(10), int64(0)).Return(2, nil)
	f.catalog.On("GrossPrice", mock.Anything, int64(10), int64(0)).Return(decimal.NewFromInt(99), nil)
	f.categories.On("MapProductCategories", mock.Anything, int64(10), int64(1)).Return(nil, nil)
	f.shipping.On("MapTagsForProduct", mock.Anything, int64(10), int64(1)).Return(nil, nil)

	payload, err := f.mapper.Map(context.Background(), 10, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, "<p>Ceramiczny</p>\n\n<h3>Zawartość zestawu</h3><ul>"+
		"<li>1x Łyżka &lt;srebrna&gt;</li><li>3x Widelec</li></ul>", payload.Description)
	assert.Equal(t, []integration.ListingImage{
		{URL: imageURL(3, "kubek")},
		{URL: imageURL(50, "kubek")},
	}, payload.Images)
}

func TestListingMapper_Map_PackItemsFailureOmitsSection(t *testing.T) {
	f := newMapperFixture()

	pack := mug()
	pack.IsPack = true
	f.catalog.On("LoadProduct", mock.Anything, int64(10), int64(1)).Return(pack, nil)
	f.catalog.On("CoverImageID", mock.Anything, int64(10)).Return(int64(3), nil)
	f.catalog.On("ProductImageIDs", mock.Anything, int64(10), int64(1)).Return([]int64{}, nil)
	f.catalog.On("PackItems", mock.Anything, int64(10), int64(1)).Return(nil, errors.New("boom"))
	f.catalog.On("AvailableQuantity", mock.Anything, int64(10), int64(0)).Return(2, nil)
	f.catalog.On("GrossPrice", mock.Anything, int64(10), int64(0)).Return(decimal.NewFromInt(99), nil)
	f.categories.On("MapProductCategories", mock.Anything, int64(10), int64(1)).Return(nil, nil)
	f.shipping.On("MapTagsForProduct", mock.Anything, int64(10), int64(1)).Return(nil, nil)

	payload, err := f.mapper.Map(context.Background(), 10, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>Ceramiczny</p>", payload.Description)
}

func TestListingMapper_Map_ImageCap(t *testing.T) {
	f := newMapperFixture()

	f.catalog.On("LoadProduct", mock.Anything, int64(10), int64(1)).Return(mug(), nil)
	f.catalog.On("CoverImageID", mock.Anything, int64(10)).Return(int64(1), nil)
	f.catalog.On("ProductImageIDs", mock.Anything, int64(10), int64(1)).Return([]int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, nil)
	f.catalog.On("AvailableQuantity", mock.Anything, int64(10), int64(0)).Return(1, nil)
	f.catalog.On("GrossPrice", mock.Anything, int64(10), int64(0)).Return(decimal.NewFromInt(1), nil)
	f.categories.On("MapProductCategories", mock.Anything, int64(10), int64(1)).Return(nil, nil)
	f.shipping.On("MapTagsForProduct", mock.Anything, int64(10), int64(1)).Return(nil, nil)

	payload, err := f.mapper.Map(context.Background(), 10, 1, nil)
	require.NoError(t, err)
	require.Len(t, payload.Images, integration.MaxListingImages)
	assert.Equal(t, imageURL(1, "kubek"), payload.Images[0].URL)
	assert.Equal(t, imageURL(10, "kubek"), payload.Images[9].URL)
}

func TestListingMapper_Map_NoImages(t *testing.T) {
	f := newMapperFixture()

	f.catalog.On("LoadProduct", mock.Anything, int64(10), int64(1)).Return(mug(), nil)
	f.catalog.On("CoverImageID", mock.Anything, int64(10)).Return(int64(0), nil)
	f.catalog.On("ProductImageIDs", mock.Anything, int64(10), int64(1)).Return([]int64{}, nil)

	_, err := f.mapper.Map(context.Background(), 10, 1, nil)
	assert.ErrorIs(t, err, integration.ErrValidation)
}

func TestListingMapper_Map_ProductNotFound(t *testing.T) {
	f := newMapperFixture()
	f.catalog.On("LoadProduct", mock.Anything, int64(404), int64(1)).Return(nil, integration.ErrNotFound)

	_, err := f.mapper.Map(context.Background(), 404, 1, nil)
	assert.ErrorIs(t, err, integration.ErrNotFound)
}

func TestNormalizeImageURL(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		domain string
		want   string
	}{
		{"protocol relative", "//cdn.example/1.jpg", "", "https://cdn.example/1.jpg"},
		{"http upgraded", "http://shop.example/1.jpg", "", "https://shop.example/1.jpg"},
		{"mixed case scheme", "HTTP://shop.example/1.jpg", "", "https://shop.example/1.jpg"},
		{"https kept", "https://shop.example/1.jpg", "", "https://shop.example/1.jpg"},
		{"relative joined", "/img/p/1.jpg", "shop.example", "https://shop.example/img/p/1.jpg"},
		{"relative with http domain", "img/p/1.jpg", "http://shop.example/", "https://shop.example/img/p/1.jpg"},
		{"relative without domain", "/img/p/1.jpg", "", ""},
		{"blank", "   ", "shop.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeImageURL(tt.raw, tt.domain)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeImageURL(got, tt.domain), "normalization must be idempotent")
		})
	}
}
