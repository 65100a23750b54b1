// Package models defines the domain types for Trove.
package models

// Supplier is a source of craft supplies. Independent entity, no FK.
type Supplier struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ContactInfo string  `json:"contact_info"`
	Website     *string `json:"website,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// Item is a craft supply item. Name is its natural identity: import
// conflict detection matches on it, not on the numeric ID.
type Item struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Category     *string  `json:"category,omitempty"`
	Quantity     *float64 `json:"quantity,omitempty"`
	Unit         *string  `json:"unit,omitempty"`
	SupplierID   *int64   `json:"supplier_id,omitempty"`
	PurchaseDate *string  `json:"purchase_date,omitempty"` // ISO date string
	PhotoPath    *string  `json:"photo_path,omitempty"`    // opaque, not validated
}

// Project is a craft project that consumes items as materials.
type Project struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	DateCreated *string `json:"date_created,omitempty"` // ISO date string
}

// ProjectMaterial links a project to an item it consumes. Duplicate
// (project, item) pairs are not structurally prevented.
//
// ItemName, Category, and Unit are denormalized from the items table for
// display and appear in snapshot exports; imports ignore them.
type ProjectMaterial struct {
	ID           int64   `json:"id"`
	ProjectID    int64   `json:"project_id"`
	ItemID       int64   `json:"item_id"`
	QuantityUsed float64 `json:"quantity_used"`
	ItemName     string  `json:"item_name,omitempty"`
	Category     *string `json:"category,omitempty"`
	Unit         *string `json:"unit,omitempty"`
}

// Tag is a label attachable to items and projects.
type Tag struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Color *string `json:"color,omitempty"`
}

// MetadataEntry is one key/value pair attached to an item.
// Keys are unique per item; writes overwrite, never duplicate.
type MetadataEntry struct {
	ItemID int64  `json:"item_id"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}
