// Package storage defines the workspace file-system abstraction used for
// backups, photos, and the import inbox.
package storage

// Provider is the interface for workspace file operations.
type Provider interface {
	// List returns the paths (relative to the workspace root) of files under
	// dir whose extension is one of exts (e.g. ".json", ".csv"); empty exts
	// matches every file.
	List(dir string, exts ...string) ([]string, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to root), creating the
	// destination directory if needed.
	Move(oldPath, newPath string) error
	// Abs resolves path against the workspace root, rejecting escapes.
	Abs(path string) (string, error)
}
