// Package models contains the GORM models of the storefront tables read and
// written by the connector, plus the connector's own link and log tables.
// Repositories convert them to and from the integration domain types.
package models
