package storage

import (
	"context"

	"supportlog/internal"
)

// ReplaceCatalog swaps the stored technician catalog, keeping rule order.
func (d *DB) ReplaceCatalog(ctx context.Context, cat internal.TechnicianCatalog) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_rules`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_official`); err != nil {
		return err
	}
	for i, rule := range cat.Rules {
		if _, err := tx.ExecContext(ctx, `INSERT INTO catalog_rules (position, key, name) VALUES (?, ?, ?)`, i, rule.Key, rule.Canonical); err != nil {
			return err
		}
	}
	for i, name := range cat.Official {
		if _, err := tx.ExecContext(ctx, `INSERT INTO catalog_official (position, name) VALUES (?, ?)`, i, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadCatalog returns the stored catalog, or nil when none was synced.
func (d *DB) LoadCatalog(ctx context.Context) (*internal.TechnicianCatalog, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT key, name FROM catalog_rules ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cat internal.TechnicianCatalog
	for rows.Next() {
		var rule internal.NormalizationRule
		if err := rows.Scan(&rule.Key, &rule.Canonical); err != nil {
			return nil, err
		}
		cat.Rules = append(cat.Rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cat.Rules) == 0 {
		return nil, nil
	}

	official, err := d.conn.QueryContext(ctx, `SELECT name FROM catalog_official ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer official.Close()
	for official.Next() {
		var name string
		if err := official.Scan(&name); err != nil {
			return nil, err
		}
		cat.Official = append(cat.Official, name)
	}
	return &cat, official.Err()
}
