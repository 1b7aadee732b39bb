package integration

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/erli-connector/internal/domain/integration"
)

// NormalizeImageURL rewrites an image URL to absolute HTTPS. Protocol-relative
// and http URLs are upgraded; host-relative paths are joined to the secure
// domain. It returns "" when the URL cannot be made absolute.
func NormalizeImageURL(raw, secureDomain string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	switch {
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(lower, "https://"):
		return "https://" + u[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		return "https://" + u[len("http://"):]
	}

	base := secureBase(secureDomain)
	if base == "" {
		return ""
	}
	return base + "/" + strings.TrimLeft(u, "/")
}

// secureBase returns "https://host[/path]" without a trailing slash.
func secureBase(domain string) string {
	d := strings.TrimRight(strings.TrimSpace(domain), "/")
	if d == "" {
		return ""
	}
	lower := strings.ToLower(d)
	switch {
	case strings.HasPrefix(lower, "https://"):
		return "https://" + d[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		return "https://" + d[len("http://"):]
	case strings.HasPrefix(d, "//"):
		return "https:" + d
	default:
		return "https://" + d
	}
}

// imageStrategy yields candidate image ids; the first non-empty result wins
type imageStrategy struct {
	name string
	load func(ctx context.Context, product *integration.CatalogProduct, variantID, langID int64) ([]int64, error)
}

// imageResolver picks the images of a listing
type imageResolver struct {
	catalog      integration.CatalogReader
	urls         integration.ImageURLBuilder
	secureDomain string
	strategies   []imageStrategy
	logger       *zap.Logger
}

func newImageResolver(catalog integration.CatalogReader, urls integration.ImageURLBuilder, secureDomain string, logger *zap.Logger) *imageResolver {
	r := &imageResolver{
		catalog:      catalog,
		urls:         urls,
		secureDomain: secureDomain,
		logger:       logger,
	}
	r.strategies = []imageStrategy{
		{name: "variant_direct", load: r.variantDirect},
		{name: "variant_combination", load: r.variantCombination},
		{name: "product", load: r.productImages},
	}
	return r
}

func (r *imageResolver) variantDirect(ctx context.Context, _ *integration.CatalogProduct, variantID, _ int64) ([]int64, error) {
	if variantID <= 0 {
		return nil, nil
	}
	return r.catalog.VariantImageIDs(ctx, variantID)
}

func (r *imageResolver) variantCombination(ctx context.Context, p *integration.CatalogProduct, variantID, langID int64) ([]int64, error) {
	if variantID <= 0 {
		return nil, nil
	}
	return r.catalog.CombinationImageIDs(ctx, p.ID, variantID, langID)
}

// productImages returns the cover first, then the other product images.
func (r *imageResolver) productImages(ctx context.Context, p *integration.CatalogProduct, _, langID int64) ([]int64, error) {
	cover, err := r.catalog.CoverImageID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	all, err := r.catalog.ProductImageIDs(ctx, p.ID, langID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(all)+1)
	if cover > 0 {
		ids = append(ids, cover)
	}
	return append(ids, all...), nil
}

// ImageIDs returns the de-duplicated image ids of a listing, at most MaxListingImages.
func (r *imageResolver) ImageIDs(ctx context.Context, p *integration.CatalogProduct, variantID, langID int64) []int64 {
	var candidates []int64
	for _, s := range r.strategies {
		ids, err := s.load(ctx, p, variantID, langID)
		if err != nil {
			r.logger.Warn("Image strategy failed",
				zap.String("strategy", s.name),
				zap.Int64("product_id", p.ID),
				zap.Int64("variant_id", variantID),
				zap.Error(err),
			)
			continue
		}
		if len(positive(ids)) > 0 {
			candidates = ids
			break
		}
	}

	out := make([]int64, 0, integration.MaxListingImages)
	seen := make(map[int64]struct{}, integration.MaxListingImages)
	add := func(id int64) {
		if id <= 0 || len(out) >= integration.MaxListingImages {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range candidates {
		add(id)
	}

	if p.IsPack && len(out) < integration.MaxListingImages {
		for _, id := range r.packCovers(ctx, p, langID) {
			add(id)
		}
	}
	return out
}

func (r *imageResolver) packCovers(ctx context.Context, p *integration.CatalogProduct, langID int64) []int64 {
	items, err := r.catalog.PackItems(ctx, p.ID, langID)
	if err != nil {
		r.logger.Warn("Failed to load pack items for images", zap.Int64("product_id", p.ID), zap.Error(err))
		return nil
	}
	covers := make([]int64, 0, len(items))
	for _, item := range items {
		cover, err := r.catalog.CoverImageID(ctx, item.ProductID)
		if err != nil {
			continue
		}
		covers = append(covers, cover)
	}
	return covers
}

// Images renders the listing images as absolute HTTPS URLs.
func (r *imageResolver) Images(ctx context.Context, p *integration.CatalogProduct, variantID, langID int64) []integration.ListingImage {
	ids := r.ImageIDs(ctx, p, variantID, langID)
	images := make([]integration.ListingImage, 0, len(ids))
	for _, id := range ids {
		u := NormalizeImageURL(r.urls.LargeImageURL(p.LinkRewrite, id), r.secureDomain)
		if u == "" {
			continue
		}
		images = append(images, integration.ListingImage{URL: u})
	}
	return images
}

func positive(ids []int64) []int64 {
	out := ids[:0:0]
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	return out
}
