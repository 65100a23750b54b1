package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/marden/trove/internal/models"
)

// AddSupplier inserts a supplier and returns its assigned ID.
func (db *DB) AddSupplier(s models.Supplier) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO suppliers (name, contact_info, website, notes) VALUES (?, ?, ?, ?)`,
		s.Name, s.ContactInfo, s.Website, s.Notes)
	if err != nil {
		return 0, fmt.Errorf("store: add supplier: %w", err)
	}
	return res.LastInsertId()
}

// SupplierByID returns the supplier with the given ID, or nil if absent.
func (db *DB) SupplierByID(id int64) (*models.Supplier, error) {
	row := db.conn.QueryRow(`SELECT id, name, contact_info, website, notes FROM suppliers WHERE id = ?`, id)
	s, err := scanSupplier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListSuppliers returns all suppliers ordered by name.
func (db *DB) ListSuppliers() ([]models.Supplier, error) {
	return db.querySuppliers(`SELECT id, name, contact_info, website, notes FROM suppliers ORDER BY name`)
}

// SearchSuppliers matches the term against name, contact info, website, and notes.
func (db *DB) SearchSuppliers(term string) ([]models.Supplier, error) {
	pat := "%" + term + "%"
	return db.querySuppliers(`
		SELECT id, name, contact_info, website, notes FROM suppliers
		WHERE name LIKE ? OR contact_info LIKE ? OR website LIKE ? OR notes LIKE ?
		ORDER BY name`, pat, pat, pat, pat)
}

// UpdateSupplier applies the non-nil fields of the patch.
func (db *DB) UpdateSupplier(id int64, p SupplierPatch) error {
	var sets []string
	var args []any
	if p.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, *p.Name)
	}
	if p.ContactInfo != nil {
		sets, args = append(sets, "contact_info = ?"), append(args, *p.ContactInfo)
	}
	if p.Website != nil {
		sets, args = append(sets, "website = ?"), append(args, *p.Website)
	}
	if p.Notes != nil {
		sets, args = append(sets, "notes = ?"), append(args, *p.Notes)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := db.conn.Exec(`UPDATE suppliers SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("store: update supplier: %w", err)
	}
	return nil
}

// DeleteSupplier removes a supplier; items referencing it keep a null supplier.
func (db *DB) DeleteSupplier(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM suppliers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete supplier: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSupplier(r rowScanner) (*models.Supplier, error) {
	var s models.Supplier
	var website, notes sql.NullString
	if err := r.Scan(&s.ID, &s.Name, &s.ContactInfo, &website, &notes); err != nil {
		return nil, err
	}
	s.Website = nullStr(website)
	s.Notes = nullStr(notes)
	return &s, nil
}

func (db *DB) querySuppliers(query string, args ...any) ([]models.Supplier, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query suppliers: %w", err)
	}
	defer rows.Close()
	var out []models.Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
