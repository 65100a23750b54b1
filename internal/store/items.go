package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/marden/trove/internal/models"
)

const itemCols = `id, name, category, quantity, unit, supplier_id, purchase_date, photo_path`

// AddItem inserts an item and returns its assigned ID.
func (db *DB) AddItem(i models.Item) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO items (name, category, quantity, unit, supplier_id, purchase_date, photo_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.Name, i.Category, i.Quantity, i.Unit, i.SupplierID, i.PurchaseDate, i.PhotoPath)
	if err != nil {
		return 0, fmt.Errorf("store: add item: %w", err)
	}
	return res.LastInsertId()
}

// ItemByID returns the item with the given ID, or nil if absent.
func (db *DB) ItemByID(id int64) (*models.Item, error) {
	row := db.conn.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id)
	i, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return i, err
}

// ListItems returns all items ordered by name.
func (db *DB) ListItems() ([]models.Item, error) {
	return db.queryItems(`SELECT ` + itemCols + ` FROM items ORDER BY name`)
}

// SearchItems matches the term against item name, category, and supplier name.
func (db *DB) SearchItems(term string) ([]models.Item, error) {
	pat := "%" + term + "%"
	return db.queryItems(`
		SELECT i.id, i.name, i.category, i.quantity, i.unit, i.supplier_id, i.purchase_date, i.photo_path
		FROM items i
		LEFT JOIN suppliers s ON i.supplier_id = s.id
		WHERE i.name LIKE ? OR i.category LIKE ? OR s.name LIKE ?
		ORDER BY i.name`, pat, pat, pat)
}

// FilterItems returns items matching every set criterion of the filter.
func (db *DB) FilterItems(f ItemFilter) ([]models.Item, error) {
	var conds []string
	var args []any
	if f.Category != "" {
		conds, args = append(conds, "category = ?"), append(args, f.Category)
	}
	if f.SupplierID != nil {
		conds, args = append(conds, "supplier_id = ?"), append(args, *f.SupplierID)
	}
	if f.DateFrom != "" {
		conds, args = append(conds, "purchase_date >= ?"), append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		conds, args = append(conds, "purchase_date <= ?"), append(args, f.DateTo)
	}
	if f.QuantityMin != nil {
		conds, args = append(conds, "quantity >= ?"), append(args, *f.QuantityMin)
	}
	if f.QuantityMax != nil {
		conds, args = append(conds, "quantity <= ?"), append(args, *f.QuantityMax)
	}
	where := "1=1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}
	return db.queryItems(`SELECT `+itemCols+` FROM items WHERE `+where+` ORDER BY name`, args...)
}

// UpdateItem applies the non-nil fields of the patch.
func (db *DB) UpdateItem(id int64, p ItemPatch) error {
	var sets []string
	var args []any
	if p.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, *p.Name)
	}
	if p.Category != nil {
		sets, args = append(sets, "category = ?"), append(args, *p.Category)
	}
	if p.Quantity != nil {
		sets, args = append(sets, "quantity = ?"), append(args, *p.Quantity)
	}
	if p.Unit != nil {
		sets, args = append(sets, "unit = ?"), append(args, *p.Unit)
	}
	if p.SupplierID != nil {
		sets, args = append(sets, "supplier_id = ?"), append(args, *p.SupplierID)
	}
	if p.PurchaseDate != nil {
		sets, args = append(sets, "purchase_date = ?"), append(args, *p.PurchaseDate)
	}
	if p.PhotoPath != nil {
		sets, args = append(sets, "photo_path = ?"), append(args, *p.PhotoPath)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	if _, err := db.conn.Exec(`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("store: update item: %w", err)
	}
	return nil
}

// DeleteItem removes an item; its metadata, material rows, and tag
// associations cascade.
func (db *DB) DeleteItem(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete item: %w", err)
	}
	return nil
}

// SetMetadata writes a metadata key for an item, overwriting an existing value.
func (db *DB) SetMetadata(itemID int64, key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO item_metadata (item_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(item_id, key) DO UPDATE SET value = excluded.value`,
		itemID, key, value)
	if err != nil {
		return fmt.Errorf("store: set metadata: %w", err)
	}
	return nil
}

// Metadata returns all metadata entries for an item ordered by key.
func (db *DB) Metadata(itemID int64) ([]models.MetadataEntry, error) {
	rows, err := db.conn.Query(`SELECT item_id, key, value FROM item_metadata WHERE item_id = ? ORDER BY key`, itemID)
	if err != nil {
		return nil, fmt.Errorf("store: metadata: %w", err)
	}
	defer rows.Close()
	var out []models.MetadataEntry
	for rows.Next() {
		var m models.MetadataEntry
		if err := rows.Scan(&m.ItemID, &m.Key, &m.Value); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMetadata removes one metadata key for an item.
func (db *DB) DeleteMetadata(itemID int64, key string) error {
	if _, err := db.conn.Exec(`DELETE FROM item_metadata WHERE item_id = ? AND key = ?`, itemID, key); err != nil {
		return fmt.Errorf("store: delete metadata: %w", err)
	}
	return nil
}

func scanItem(r rowScanner) (*models.Item, error) {
	var i models.Item
	var category, unit, purchaseDate, photoPath sql.NullString
	var quantity sql.NullFloat64
	var supplierID sql.NullInt64
	if err := r.Scan(&i.ID, &i.Name, &category, &quantity, &unit, &supplierID, &purchaseDate, &photoPath); err != nil {
		return nil, err
	}
	i.Category = nullStr(category)
	i.Quantity = nullFloat(quantity)
	i.Unit = nullStr(unit)
	i.SupplierID = nullInt(supplierID)
	i.PurchaseDate = nullStr(purchaseDate)
	i.PhotoPath = nullStr(photoPath)
	return &i, nil
}

func (db *DB) queryItems(query string, args ...any) ([]models.Item, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query items: %w", err)
	}
	defer rows.Close()
	var out []models.Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}
