package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/record"
)

// ImportStats counts the rows an Import inserted.
type ImportStats struct {
	EHRs         int
	Compositions int

	// Conflicts counts records whose identifier was already stored with a
	// different content hash. The stored version is kept.
	Conflicts int
}

// Import writes a dataset in one transaction.
// Uses ON CONFLICT DO NOTHING for idempotency: EHRs and compositions whose
// identifiers are already stored are skipped and not counted. A skipped
// record whose body hashes differently from the stored one counts as a
// conflict.
//
// Bodies are serialized with sorted keys and exact numbers.
func (s *Store) Import(ctx context.Context, ds *record.Dataset) (ImportStats, error) {
	var stats ImportStats
	if ds == nil {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("import: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range ds.Records {
		inserted, conflict, err := insertEHR(ctx, tx, rec.EHR)
		if err != nil {
			return ImportStats{}, fmt.Errorf("import: %w", err)
		}
		stats.EHRs += inserted
		if conflict {
			stats.Conflicts++
		}

		for _, c := range rec.Compositions {
			inserted, conflict, err := insertComposition(ctx, tx, c)
			if err != nil {
				return ImportStats{}, fmt.Errorf("import: %w", err)
			}
			stats.Compositions += inserted
			if conflict {
				stats.Conflicts++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportStats{}, fmt.Errorf("import: commit: %w", err)
	}
	return stats, nil
}

func insertEHR(ctx context.Context, tx *sql.Tx, e record.EHR) (int, bool, error) {
	body, err := marshalBody(e.Body)
	if err != nil {
		return 0, false, fmt.Errorf("ehr %s: %w", e.ID, err)
	}
	hash, err := ir.ContentHash(ir.DomainEHR, e.Body)
	if err != nil {
		return 0, false, fmt.Errorf("ehr %s: %w", e.ID, err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO ehrs (ehr_id, system_id, time_created, content_hash, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ehr_id) DO NOTHING
	`, e.ID, e.SystemID, e.TimeCreated, hash, body)
	if err != nil {
		return 0, false, fmt.Errorf("ehr %s: %w", e.ID, err)
	}
	n, err := affected(result)
	if err != nil || n > 0 {
		return n, false, err
	}

	conflict, err := hashDiffers(ctx, tx, `SELECT content_hash FROM ehrs WHERE ehr_id = ?`, e.ID, hash)
	if err != nil {
		return 0, false, fmt.Errorf("ehr %s: %w", e.ID, err)
	}
	return 0, conflict, nil
}

func insertComposition(ctx context.Context, tx *sql.Tx, c record.Composition) (int, bool, error) {
	body, err := marshalBody(c.Body)
	if err != nil {
		return 0, false, fmt.Errorf("composition %s: %w", c.UID, err)
	}
	hash, err := ir.ContentHash(ir.DomainComposition, c.Body)
	if err != nil {
		return 0, false, fmt.Errorf("composition %s: %w", c.UID, err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO compositions (uid, ehr_id, archetype_node_id, template_id, content_hash, body)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO NOTHING
	`, c.UID, c.EHRID, c.ArchetypeNodeID, c.TemplateID, hash, body)
	if err != nil {
		return 0, false, fmt.Errorf("composition %s: %w", c.UID, err)
	}
	n, err := affected(result)
	if err != nil || n > 0 {
		return n, false, err
	}

	conflict, err := hashDiffers(ctx, tx, `SELECT content_hash FROM compositions WHERE uid = ?`, c.UID, hash)
	if err != nil {
		return 0, false, fmt.Errorf("composition %s: %w", c.UID, err)
	}
	return 0, conflict, nil
}

// hashDiffers reads the stored content hash of an existing row.
func hashDiffers(ctx context.Context, tx *sql.Tx, query, id, hash string) (bool, error) {
	var stored string
	if err := tx.QueryRowContext(ctx, query, id).Scan(&stored); err != nil {
		return false, fmt.Errorf("read content hash: %w", err)
	}
	return stored != hash, nil
}

func affected(result sql.Result) (int, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
