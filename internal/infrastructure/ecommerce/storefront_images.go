package ecommerce

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/erp/erli-connector/internal/domain/integration"
)

const (
	// largeImageType is the storefront thumbnail type used for listings
	largeImageType = "large_default"
	// defaultImageSlug replaces an empty product link rewrite
	defaultImageSlug = "image"
)

// StorefrontImageURLs renders catalog image URLs in the storefront's friendly
// URL scheme: {base}/{imageId}-large_default/{linkRewrite}.jpg
type StorefrontImageURLs struct {
	baseURL string
}

// NewStorefrontImageURLs creates a URL builder. An empty baseURL yields
// host-relative URLs, which the listing mapper completes with the secure domain.
func NewStorefrontImageURLs(baseURL string) *StorefrontImageURLs {
	return &StorefrontImageURLs{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

var _ integration.ImageURLBuilder = (*StorefrontImageURLs)(nil)

// LargeImageURL returns the URL of the large variant of an image.
func (b *StorefrontImageURLs) LargeImageURL(linkRewrite string, imageID int64) string {
	slug := strings.TrimSpace(linkRewrite)
	if slug == "" {
		slug = defaultImageSlug
	}
	return b.baseURL + "/" + strconv.FormatInt(imageID, 10) + "-" + largeImageType + "/" + url.PathEscape(slug) + ".jpg"
}
