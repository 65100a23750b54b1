package exchange

import "github.com/marden/trove/internal/models"

// SnapshotVersion is the wire format version written by the exporter.
const SnapshotVersion = "1.0"

// Snapshot is the full-dataset export wire format. Association maps are keyed
// by the original ID of the owning entity, stringified because JSON object
// keys are strings.
type Snapshot struct {
	ExportDate string       `json:"export_date"`
	Version    string       `json:"version"`
	Data       SnapshotData `json:"data"`
}

// SnapshotData carries every entity list and association map of a snapshot.
type SnapshotData struct {
	Suppliers        []models.Supplier                   `json:"suppliers"`
	Items            []models.Item                       `json:"items"`
	Projects         []models.Project                    `json:"projects"`
	Tags             []models.Tag                        `json:"tags"`
	ProjectMaterials map[string][]models.ProjectMaterial `json:"project_materials"`
	ItemTags         map[string][]int64                  `json:"item_tags"`
	ProjectTags      map[string][]int64                  `json:"project_tags"`
	ItemMetadata     map[string]map[string]string        `json:"item_metadata"`
}
