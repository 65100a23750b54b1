package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/marden/trove/internal/apperr"
	"github.com/marden/trove/internal/models"
)

// AddProject inserts a project and returns its assigned ID.
func (db *DB) AddProject(p models.Project) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO projects (name, description, date_created) VALUES (?, ?, ?)`,
		p.Name, p.Description, p.DateCreated)
	if err != nil {
		return 0, fmt.Errorf("store: add project: %w", err)
	}
	return res.LastInsertId()
}

// ProjectByID returns the project with the given ID, or nil if absent.
func (db *DB) ProjectByID(id int64) (*models.Project, error) {
	row := db.conn.QueryRow(`SELECT id, name, description, date_created FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ListProjects returns all projects, newest first.
func (db *DB) ListProjects() ([]models.Project, error) {
	return db.queryProjects(`SELECT id, name, description, date_created FROM projects ORDER BY date_created DESC, name`)
}

// SearchProjects matches the term against name and description.
func (db *DB) SearchProjects(term string) ([]models.Project, error) {
	pat := "%" + term + "%"
	return db.queryProjects(`
		SELECT id, name, description, date_created FROM projects
		WHERE name LIKE ? OR description LIKE ?
		ORDER BY date_created DESC, name`, pat, pat)
}

// UpdateProject applies the non-nil fields of the patch.
func (db *DB) UpdateProject(id int64, p ProjectPatch) error {
	var sets []string
	var args []any
	if p.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, *p.Name)
	}
	if p.Description != nil {
		sets, args = append(sets, "description = ?"), append(args, *p.Description)
	}
	if p.DateCreated != nil {
		sets, args = append(sets, "date_created = ?"), append(args, *p.DateCreated)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	if _, err := db.conn.Exec(`UPDATE projects SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("store: update project: %w", err)
	}
	return nil
}

// DeleteProject removes a project; its material rows and tag associations cascade.
func (db *DB) DeleteProject(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete project: %w", err)
	}
	return nil
}

// AddMaterial records that a project consumes an item. Referencing a missing
// project or item returns apperr.ErrConflict.
func (db *DB) AddMaterial(projectID, itemID int64, quantityUsed float64) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO project_materials (project_id, item_id, quantity_used) VALUES (?, ?, ?)`,
		projectID, itemID, quantityUsed)
	if err != nil {
		if s := constraintErr(err); s != nil {
			return 0, fmt.Errorf("store: add material: %w", s)
		}
		return 0, fmt.Errorf("store: add material: %w", err)
	}
	return res.LastInsertId()
}

// MaterialsByProject returns a project's materials with denormalized item
// name, category, and unit, ordered by item name.
func (db *DB) MaterialsByProject(projectID int64) ([]models.ProjectMaterial, error) {
	rows, err := db.conn.Query(`
		SELECT pm.id, pm.project_id, pm.item_id, pm.quantity_used, i.name, i.category, i.unit
		FROM project_materials pm
		JOIN items i ON pm.item_id = i.id
		WHERE pm.project_id = ?
		ORDER BY i.name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: materials by project: %w", err)
	}
	defer rows.Close()
	var out []models.ProjectMaterial
	for rows.Next() {
		var m models.ProjectMaterial
		var category, unit sql.NullString
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.ItemID, &m.QuantityUsed, &m.ItemName, &category, &unit); err != nil {
			return nil, err
		}
		m.Category = nullStr(category)
		m.Unit = nullStr(unit)
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMaterial applies the non-nil fields of the patch.
func (db *DB) UpdateMaterial(id int64, p MaterialPatch) error {
	var sets []string
	var args []any
	if p.ItemID != nil {
		sets, args = append(sets, "item_id = ?"), append(args, *p.ItemID)
	}
	if p.QuantityUsed != nil {
		sets, args = append(sets, "quantity_used = ?"), append(args, *p.QuantityUsed)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := db.conn.Exec(`UPDATE project_materials SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("store: update material: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: update material %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// DeleteMaterial removes one material row.
func (db *DB) DeleteMaterial(id int64) error {
	res, err := db.conn.Exec(`DELETE FROM project_materials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete material: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: delete material %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func scanProject(r rowScanner) (*models.Project, error) {
	var p models.Project
	var description, dateCreated sql.NullString
	if err := r.Scan(&p.ID, &p.Name, &description, &dateCreated); err != nil {
		return nil, err
	}
	p.Description = nullStr(description)
	p.DateCreated = nullStr(dateCreated)
	return &p, nil
}

func (db *DB) queryProjects(query string, args ...any) ([]models.Project, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query projects: %w", err)
	}
	defer rows.Close()
	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
