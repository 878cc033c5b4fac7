package archive

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/corrlookup/internal/ir"
)

// Export writes objs as a new export and returns its id.
//
// The export is written in one transaction: either every table is stored
// or none is. Object order is preserved.
func (a *Archive) Export(ctx context.Context, objs []ir.Object) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("export: generate id: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("export: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO exports (id, format_version, table_count)
		VALUES (?, ?, ?)
	`, id.String(), FormatVersion, len(objs))
	if err != nil {
		return "", fmt.Errorf("export: insert export: %w", err)
	}

	for i, o := range objs {
		payload, err := marshalTable(o.Table)
		if err != nil {
			return "", fmt.Errorf("export %s: %w", o.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tables (export_id, position, name, kind, fingerprint, payload)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			id.String(),
			i,
			o.Name,
			o.Table.Kind().String(),
			formatFingerprint(o.Table.Fingerprint()),
			payload,
		)
		if err != nil {
			return "", fmt.Errorf("export %s: insert table: %w", o.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("export: commit: %w", err)
	}
	return id.String(), nil
}

// formatFingerprint renders a fingerprint as fixed-width hex. SQLite
// integers are signed, so the full uint64 is stored as text.
func formatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}
