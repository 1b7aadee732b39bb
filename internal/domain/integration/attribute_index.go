package integration

import (
	"context"
	"sort"
	"strconv"
	"time"
)

// AttributeGroup is a variant attribute group (colour, size, ...) as stored in the catalog
type AttributeGroup struct {
	// ID is the storefront attribute group id
	ID int64
	// Name is the localized group name
	Name string
	// Position is the declared display position
	Position int
	// IsColorGroup is the explicit colour flag set in the catalog
	IsColorGroup bool
}

// AttributeGroupMeta is the indexed view of one attribute group
type AttributeGroupMeta struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	IsColor bool   `json:"is_color"`
}

// AttributeGroupIndex maps attribute group id to its ordinal index within one product.
// Indexes are contiguous, 0-based, and follow (position, id) ascending order.
type AttributeGroupIndex struct {
	ProductID  int64                        `json:"product_id"`
	LanguageID int64                        `json:"language_id"`
	Groups     map[int64]AttributeGroupMeta `json:"groups"`
}

// NewAttributeGroupIndex builds an index from groups. The groups are sorted by
// position then id before indexes are assigned; isColor decides colour-likeness.
func NewAttributeGroupIndex(productID, languageID int64, groups []AttributeGroup, isColor func(AttributeGroup) bool) *AttributeGroupIndex {
	sorted := make([]AttributeGroup, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].ID < sorted[j].ID
	})

	idx := &AttributeGroupIndex{
		ProductID:  productID,
		LanguageID: languageID,
		Groups:     make(map[int64]AttributeGroupMeta, len(sorted)),
	}
	next := 0
	for _, g := range sorted {
		if _, dup := idx.Groups[g.ID]; dup {
			continue
		}
		idx.Groups[g.ID] = AttributeGroupMeta{
			Index:   next,
			Name:    g.Name,
			IsColor: isColor(g),
		}
		next++
	}
	return idx
}

// IsEmpty reports whether the product has no variant attribute groups.
func (x *AttributeGroupIndex) IsEmpty() bool {
	return x == nil || len(x.Groups) == 0
}

// Lookup returns the meta of a group.
func (x *AttributeGroupIndex) Lookup(groupID int64) (AttributeGroupMeta, bool) {
	if x == nil {
		return AttributeGroupMeta{}, false
	}
	meta, ok := x.Groups[groupID]
	return meta, ok
}

// OrderedGroupIDs returns group ids sorted by their ordinal index.
func (x *AttributeGroupIndex) OrderedGroupIDs() []int64 {
	if x == nil {
		return nil
	}
	ids := make([]int64, 0, len(x.Groups))
	for id := range x.Groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return x.Groups[ids[i]].Index < x.Groups[ids[j]].Index
	})
	return ids
}

// VariantAttributeValue is one attribute value of a variant
type VariantAttributeValue struct {
	GroupID int64
	Value   string
}

// ExternalAttributes projects the values of a variant onto marketplace attributes,
// ordered by group index. Values of groups unknown to the index are skipped.
func (x *AttributeGroupIndex) ExternalAttributes(values []VariantAttributeValue) []ExternalAttribute {
	if x.IsEmpty() {
		return nil
	}
	out := make([]ExternalAttribute, 0, len(values))
	for _, v := range values {
		meta, ok := x.Groups[v.GroupID]
		if !ok {
			continue
		}
		out = append(out, ExternalAttribute{
			Source: AttributeSourceShop,
			ID:     strconv.FormatInt(v.GroupID, 10),
			Name:   meta.Name,
			Type:   AttributeTypeString,
			Values: []string{v.Value},
			Index:  meta.Index,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Index < out[j].Index
	})
	return out
}

// VariantGroup builds the variant group of the product. When a colour group
// exists "thumbnail" leads the attribute list and colour indexes are left out.
func (x *AttributeGroupIndex) VariantGroup() *ExternalVariantGroup {
	if x.IsEmpty() {
		return nil
	}
	attrs := VariantGroupAttributes{Indexes: make([]int, 0, len(x.Groups))}
	for _, id := range x.OrderedGroupIDs() {
		meta := x.Groups[id]
		if meta.IsColor {
			attrs.Thumbnail = true
			continue
		}
		attrs.Indexes = append(attrs.Indexes, meta.Index)
	}
	return &ExternalVariantGroup{
		ID:         strconv.FormatInt(x.ProductID, 10),
		Source:     VariantGroupSourceIntegration,
		Attributes: attrs,
	}
}

// AttributeIndexCache keeps built indexes for the lifetime of a sync scope.
// Implementations must be safe for concurrent use.
type AttributeIndexCache interface {
	// Get returns the cached index of (productID, langID)
	Get(ctx context.Context, productID, langID int64) (*AttributeGroupIndex, bool)
	// Set stores the index under its product and language
	Set(ctx context.Context, index *AttributeGroupIndex, ttl time.Duration)
	// Invalidate drops the index of (productID, langID)
	Invalidate(ctx context.Context, productID, langID int64)
	// Flush drops every cached index
	Flush(ctx context.Context)
}
