package integration

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MaxListingImages is the number of images the marketplace accepts per listing
const MaxListingImages = 10

// ListingStatus is the marketplace visibility of a listing
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusInactive ListingStatus = "inactive"
)

// ---------------------------------------------------------------------------
// ListingPayload
// ---------------------------------------------------------------------------

// ListingPayload is the marketplace-ready projection of a product or a variant.
// Field names, units and nesting follow the ERLI product schema.
// It is built fresh for every sync call and never persisted.
type ListingPayload struct {
	// ExternalID is "<productId>" or "<productId>-<variantId>"
	ExternalID string `json:"externalId" validate:"required"`
	// Status is active only for an active product with stock
	Status ListingStatus `json:"status" validate:"oneof=active inactive"`
	// Name is the listing title
	Name string `json:"name" validate:"required"`
	// Description is HTML, optionally followed by the bundle contents section
	Description string `json:"description"`
	// Price is the gross unit price in minor currency units
	Price int64 `json:"price" validate:"gte=0"`
	// Stock is the available quantity
	Stock int `json:"stock" validate:"gte=0"`
	// EAN is the barcode
	EAN string `json:"ean"`
	// SKU is the seller reference
	SKU string `json:"sku"`
	// DispatchTime is the declared handling time
	DispatchTime DispatchTime `json:"dispatchTime"`
	// Weight is in grams
	Weight int64 `json:"weight" validate:"gte=1"`
	// Images is the ordered image list, at least one is required
	Images []ListingImage `json:"images" validate:"min=1,max=10,dive"`
	// DeliveryPriceList is the marketplace delivery price list tag
	DeliveryPriceList string `json:"deliveryPriceList,omitempty"`
	// ExternalCategories are the marketplace categories of the product
	ExternalCategories []ExternalCategory `json:"externalCategories,omitempty"`
	// ExternalAttributes describe the variant (variant listings only)
	ExternalAttributes []ExternalAttribute `json:"externalAttributes,omitempty"`
	// ExternalVariantGroup ties variants of one product together (variant listings only)
	ExternalVariantGroup *ExternalVariantGroup `json:"externalVariantGroup,omitempty"`
}

// DispatchTime is the number of days needed to hand the parcel over
type DispatchTime struct {
	Period int `json:"period" validate:"gte=1"`
}

// ListingImage is one listing image
type ListingImage struct {
	URL string `json:"url" validate:"required,url"`
}

// ExternalCategory is a marketplace category reference
type ExternalCategory struct {
	Source     string          `json:"source"`
	Breadcrumb []CategoryCrumb `json:"breadcrumb"`
}

// CategoryCrumb is one level of a category breadcrumb
type CategoryCrumb struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ListingExternalID returns the listing identifier of a product or variant.
func ListingExternalID(productID int64, variantID *int64) string {
	if variantID != nil && *variantID > 0 {
		return fmt.Sprintf("%d-%d", productID, *variantID)
	}
	return strconv.FormatInt(productID, 10)
}

// ---------------------------------------------------------------------------
// Variant attributes
// ---------------------------------------------------------------------------

const (
	// AttributeSourceShop marks attributes defined by the shop
	AttributeSourceShop = "shop"
	// AttributeTypeString is the only attribute type the connector emits
	AttributeTypeString = "string"
	// VariantGroupSourceIntegration marks variant groups built by the connector
	VariantGroupSourceIntegration = "integration"
	// ThumbnailAttribute tells the marketplace to tell variants apart by their picture
	ThumbnailAttribute = "thumbnail"
)

// ExternalAttribute describes one attribute value of a variant
type ExternalAttribute struct {
	Source string   `json:"source"`
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Values []string `json:"values"`
	Index  int      `json:"index"`
}

// ExternalVariantGroup groups the variant listings of one product
type ExternalVariantGroup struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source"`
	Attributes VariantGroupAttributes `json:"attributes"`
}

// VariantGroupAttributes is the mixed list of differentiating attributes.
// When Thumbnail is set the JSON list starts with "thumbnail", followed by
// the ordinal indexes.
type VariantGroupAttributes struct {
	Thumbnail bool
	Indexes   []int
}

// MarshalJSON encodes the attributes as a heterogeneous JSON array.
func (a VariantGroupAttributes) MarshalJSON() ([]byte, error) {
	items := make([]any, 0, len(a.Indexes)+1)
	if a.Thumbnail {
		items = append(items, ThumbnailAttribute)
	}
	for _, idx := range a.Indexes {
		items = append(items, idx)
	}
	return json.Marshal(items)
}

// UnmarshalJSON decodes a heterogeneous JSON array of "thumbnail" and indexes.
func (a *VariantGroupAttributes) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	a.Thumbnail = false
	a.Indexes = make([]int, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s != ThumbnailAttribute {
				return fmt.Errorf("unknown variant group attribute %q", s)
			}
			a.Thumbnail = true
			continue
		}
		var idx int
		if err := json.Unmarshal(item, &idx); err != nil {
			return err
		}
		a.Indexes = append(a.Indexes, idx)
	}
	return nil
}
