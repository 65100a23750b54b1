package store

import "github.com/marden/trove/internal/models"

// Store is the repository contract consumed by the rest of the application.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Store interface {
	// Suppliers.
	AddSupplier(s models.Supplier) (int64, error)
	SupplierByID(id int64) (*models.Supplier, error)
	ListSuppliers() ([]models.Supplier, error)
	UpdateSupplier(id int64, p SupplierPatch) error
	DeleteSupplier(id int64) error
	SearchSuppliers(term string) ([]models.Supplier, error)

	// Items.
	AddItem(i models.Item) (int64, error)
	ItemByID(id int64) (*models.Item, error)
	ListItems() ([]models.Item, error)
	UpdateItem(id int64, p ItemPatch) error
	DeleteItem(id int64) error
	SearchItems(term string) ([]models.Item, error)
	FilterItems(f ItemFilter) ([]models.Item, error)

	// Item metadata (upsert semantics: an existing key is overwritten).
	SetMetadata(itemID int64, key, value string) error
	Metadata(itemID int64) ([]models.MetadataEntry, error)
	DeleteMetadata(itemID int64, key string) error

	// Projects.
	AddProject(p models.Project) (int64, error)
	ProjectByID(id int64) (*models.Project, error)
	ListProjects() ([]models.Project, error)
	UpdateProject(id int64, p ProjectPatch) error
	DeleteProject(id int64) error
	SearchProjects(term string) ([]models.Project, error)

	// Project materials.
	AddMaterial(projectID, itemID int64, quantityUsed float64) (int64, error)
	MaterialsByProject(projectID int64) ([]models.ProjectMaterial, error)
	UpdateMaterial(id int64, p MaterialPatch) error
	DeleteMaterial(id int64) error

	// Tags and associations.
	AddTag(t models.Tag) (int64, error)
	TagByID(id int64) (*models.Tag, error)
	TagByName(name string) (*models.Tag, error)
	ListTags() ([]models.Tag, error)
	UpdateTag(id int64, p TagPatch) error
	DeleteTag(id int64) error
	TagItem(itemID, tagID int64) error
	UntagItem(itemID, tagID int64) error
	ItemTags(itemID int64) ([]models.Tag, error)
	TagProject(projectID, tagID int64) error
	UntagProject(projectID, tagID int64) error
	ProjectTags(projectID int64) ([]models.Tag, error)
	ItemsByTag(tagID int64) ([]models.Item, error)
	ProjectsByTag(tagID int64) ([]models.Project, error)

	Close() error
}

// SupplierPatch is a partial supplier update; nil fields are left untouched.
type SupplierPatch struct {
	Name        *string
	ContactInfo *string
	Website     *string
	Notes       *string
}

// ItemPatch is a partial item update; nil fields are left untouched.
type ItemPatch struct {
	Name         *string
	Category     *string
	Quantity     *float64
	Unit         *string
	SupplierID   *int64
	PurchaseDate *string
	PhotoPath    *string
}

// ProjectPatch is a partial project update; nil fields are left untouched.
type ProjectPatch struct {
	Name        *string
	Description *string
	DateCreated *string
}

// MaterialPatch is a partial material update; nil fields are left untouched.
type MaterialPatch struct {
	ItemID       *int64
	QuantityUsed *float64
}

// TagPatch is a partial tag update; nil fields are left untouched.
type TagPatch struct {
	Name  *string
	Color *string
}

// ItemFilter narrows an item listing; zero-value fields are ignored.
type ItemFilter struct {
	Category    string
	SupplierID  *int64
	DateFrom    string
	DateTo      string
	QuantityMin *float64
	QuantityMax *float64
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
