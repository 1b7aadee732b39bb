// Package integration contains the ERLI marketplace integration bounded context.
// It describes how storefront products are projected onto marketplace listings
// and how marketplace order events are turned into local orders.
//
// Key concepts:
//   - ListingPayload: marketplace-ready projection of a product or variant
//   - AttributeGroupIndex: stable ordinal index over a product's variant attribute groups
//   - InboxEvent: one event pulled from the marketplace inbox
//   - OrderLink: persisted link between a local order and a marketplace order
//   - CarrierMapping: persisted link between a marketplace delivery tag and a local carrier
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
