package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/marden/trove/internal/models"
)

// AddTag inserts a tag and returns its assigned ID. Tag names are unique;
// inserting a duplicate returns apperr.ErrAlreadyExists.
func (db *DB) AddTag(t models.Tag) (int64, error) {
	res, err := db.conn.Exec(`INSERT INTO tags (name, color) VALUES (?, ?)`, t.Name, t.Color)
	if err != nil {
		if s := constraintErr(err); s != nil {
			return 0, fmt.Errorf("store: add tag %q: %w", t.Name, s)
		}
		return 0, fmt.Errorf("store: add tag: %w", err)
	}
	return res.LastInsertId()
}

// TagByID returns the tag with the given ID, or nil if absent.
func (db *DB) TagByID(id int64) (*models.Tag, error) {
	row := db.conn.QueryRow(`SELECT id, name, color FROM tags WHERE id = ?`, id)
	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// TagByName returns the tag with the given name, or nil if absent.
func (db *DB) TagByName(name string) (*models.Tag, error) {
	row := db.conn.QueryRow(`SELECT id, name, color FROM tags WHERE name = ?`, name)
	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListTags returns all tags ordered by name.
func (db *DB) ListTags() ([]models.Tag, error) {
	return db.queryTags(`SELECT id, name, color FROM tags ORDER BY name`)
}

// UpdateTag applies the non-nil fields of the patch.
func (db *DB) UpdateTag(id int64, p TagPatch) error {
	var sets []string
	var args []any
	if p.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, *p.Name)
	}
	if p.Color != nil {
		sets, args = append(sets, "color = ?"), append(args, *p.Color)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	if _, err := db.conn.Exec(`UPDATE tags SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		if s := constraintErr(err); s != nil {
			return fmt.Errorf("store: update tag %d: %w", id, s)
		}
		return fmt.Errorf("store: update tag: %w", err)
	}
	return nil
}

// DeleteTag removes a tag; its item and project associations cascade.
func (db *DB) DeleteTag(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM tags WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete tag: %w", err)
	}
	return nil
}

// TagItem associates a tag with an item; duplicate pairs are ignored.
func (db *DB) TagItem(itemID, tagID int64) error {
	if _, err := db.conn.Exec(`INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`, itemID, tagID); err != nil {
		return fmt.Errorf("store: tag item: %w", err)
	}
	return nil
}

// UntagItem removes a tag association from an item.
func (db *DB) UntagItem(itemID, tagID int64) error {
	if _, err := db.conn.Exec(`DELETE FROM item_tags WHERE item_id = ? AND tag_id = ?`, itemID, tagID); err != nil {
		return fmt.Errorf("store: untag item: %w", err)
	}
	return nil
}

// ItemTags returns all tags attached to an item, ordered by name.
func (db *DB) ItemTags(itemID int64) ([]models.Tag, error) {
	return db.queryTags(`
		SELECT t.id, t.name, t.color FROM tags t
		JOIN item_tags it ON t.id = it.tag_id
		WHERE it.item_id = ?
		ORDER BY t.name`, itemID)
}

// TagProject associates a tag with a project; duplicate pairs are ignored.
func (db *DB) TagProject(projectID, tagID int64) error {
	if _, err := db.conn.Exec(`INSERT OR IGNORE INTO project_tags (project_id, tag_id) VALUES (?, ?)`, projectID, tagID); err != nil {
		return fmt.Errorf("store: tag project: %w", err)
	}
	return nil
}

// UntagProject removes a tag association from a project.
func (db *DB) UntagProject(projectID, tagID int64) error {
	if _, err := db.conn.Exec(`DELETE FROM project_tags WHERE project_id = ? AND tag_id = ?`, projectID, tagID); err != nil {
		return fmt.Errorf("store: untag project: %w", err)
	}
	return nil
}

// ProjectTags returns all tags attached to a project, ordered by name.
func (db *DB) ProjectTags(projectID int64) ([]models.Tag, error) {
	return db.queryTags(`
		SELECT t.id, t.name, t.color FROM tags t
		JOIN project_tags pt ON t.id = pt.tag_id
		WHERE pt.project_id = ?
		ORDER BY t.name`, projectID)
}

// ItemsByTag returns all items carrying the tag, ordered by name.
func (db *DB) ItemsByTag(tagID int64) ([]models.Item, error) {
	return db.queryItems(`
		SELECT i.id, i.name, i.category, i.quantity, i.unit, i.supplier_id, i.purchase_date, i.photo_path
		FROM items i
		JOIN item_tags it ON i.id = it.item_id
		WHERE it.tag_id = ?
		ORDER BY i.name`, tagID)
}

// ProjectsByTag returns all projects carrying the tag, newest first.
func (db *DB) ProjectsByTag(tagID int64) ([]models.Project, error) {
	return db.queryProjects(`
		SELECT p.id, p.name, p.description, p.date_created
		FROM projects p
		JOIN project_tags pt ON p.id = pt.project_id
		WHERE pt.tag_id = ?
		ORDER BY p.date_created DESC, p.name`, tagID)
}

func scanTag(r rowScanner) (*models.Tag, error) {
	var t models.Tag
	var color sql.NullString
	if err := r.Scan(&t.ID, &t.Name, &color); err != nil {
		return nil, err
	}
	t.Color = nullStr(color)
	return &t, nil
}

func (db *DB) queryTags(query string, args ...any) ([]models.Tag, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query tags: %w", err)
	}
	defer rows.Close()
	var out []models.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
