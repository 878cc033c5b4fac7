package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/corrlookup/internal/ir"
)

// ExportInfo describes one stored export.
type ExportInfo struct {
	Seq           int64
	ID            string
	FormatVersion int
	TableCount    int
}

// Exports lists all exports, oldest first.
func (a *Archive) Exports(ctx context.Context) ([]ExportInfo, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT seq, id, format_version, table_count
		FROM exports
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	exports := []ExportInfo{}
	for rows.Next() {
		var e ExportInfo
		if err := rows.Scan(&e.Seq, &e.ID, &e.FormatVersion, &e.TableCount); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		exports = append(exports, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return exports, nil
}

// Load returns the tables of the latest export in export order.
//
// Returns PARSE_ERROR if the archive holds no export.
func (a *Archive) Load(ctx context.Context) ([]ir.Object, error) {
	var id string
	err := a.db.QueryRowContext(ctx, `
		SELECT id FROM exports ORDER BY seq DESC LIMIT 1
	`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ir.Errorf(ir.CodeParse, "archive contains no exports")
	}
	if err != nil {
		return nil, fmt.Errorf("query latest export: %w", err)
	}
	return a.LoadExport(ctx, id)
}

// LoadExport returns the tables of export id in export order.
//
// Returns UNKNOWN_KEY if the export does not exist and SHAPE_MISMATCH if a
// stored table fails its fingerprint check.
func (a *Archive) LoadExport(ctx context.Context, id string) ([]ir.Object, error) {
	var (
		version int
		count   int
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT format_version, table_count FROM exports WHERE id = ?
	`, id).Scan(&version, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ir.Errorf(ir.CodeUnknownKey, "no export %q", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query export: %w", err)
	}
	if version != FormatVersion {
		return nil, ir.Errorf(ir.CodeParse, "export %s has format version %d, expected %d", id, version, FormatVersion)
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT name, kind, fingerprint, payload
		FROM tables
		WHERE export_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	objs := make([]ir.Object, 0, count)
	for rows.Next() {
		var name, kind, fingerprint, payload string
		if err := rows.Scan(&name, &kind, &fingerprint, &payload); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}

		want, err := ir.ParseKind(kind)
		if err != nil {
			return nil, keyed(err, name)
		}
		t, err := unmarshalTable(payload, a.formulas)
		if err != nil {
			return nil, keyed(err, name)
		}
		if got := formatFingerprint(t.Fingerprint()); got != fingerprint {
			return nil, ir.Errorf(ir.CodeShapeMismatch, "corrupt table: fingerprint %s, stored %s", got, fingerprint).WithKey(name)
		}
		if t.Kind() != want {
			return nil, ir.Errorf(ir.CodeShapeMismatch, "corrupt table: kind %s, stored %s", t.Kind(), want).WithKey(name)
		}
		objs = append(objs, ir.Object{Name: name, Table: t})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	if len(objs) != count {
		return nil, ir.Errorf(ir.CodeShapeMismatch, "export %s lists %d tables, found %d", id, count, len(objs))
	}
	return objs, nil
}

func keyed(err error, key string) error {
	var e *ir.Error
	if errors.As(err, &e) {
		return e.WithKey(key)
	}
	return fmt.Errorf("table %s: %w", key, err)
}
