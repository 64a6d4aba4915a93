package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// RewriteRecord is one row of the append-only rewrite audit log.
type RewriteRecord struct {
	ID        int64
	RunToken  string
	Seq       int64
	PackageID string
	RuleID    string
	StateID   string
	DiagramID string
	RootID    string
	Applied   bool
	Tag       string

	// BeforeFP and AfterFP are diagram fingerprints around the rewrite;
	// for a rejected rewrite they are equal.
	BeforeFP string
	AfterFP  string
	// StateFP fingerprints the resulting state.
	StateFP string
	// RewriteFP is the content-addressed id of the application itself.
	RewriteFP string
}

// TelemetryRecord is one observed mixer tick.
type TelemetryRecord struct {
	ID                int64
	RunToken          string
	Seq               int64
	LoopGain          float64
	AdmissibleVolume  float64
	ExcludedVolume    float64
	UndecidedVolume   float64
	CollapseRatio     float64
	ConservationError float64
	TransportReady    bool
}

// SavePackage stores the package under its content-addressed
// fingerprint and returns that id. Saving the same package twice is a
// no-op.
func (s *Store) SavePackage(ctx context.Context, pkg *ir.Package) (string, error) {
	fp, err := ir.PackageFingerprint(pkg)
	if err != nil {
		return "", fmt.Errorf("save package: %w", err)
	}
	doc, err := json.Marshal(pkg)
	if err != nil {
		return "", fmt.Errorf("save package: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO packages (id, doc) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, fp, string(doc))
	if err != nil {
		return "", fmt.Errorf("save package: %w", err)
	}
	return fp, nil
}

// AppendRewrite inserts an audit record. Returns the row id and
// whether a new row was inserted; re-appending the same (run_token,
// seq) is idempotent and returns the existing row's id.
func (s *Store) AppendRewrite(ctx context.Context, rec RewriteRecord) (id int64, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("append rewrite: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO rewrite_log
		(run_token, seq, package_id, rule_id, state_id, diagram_id, root_id,
		 applied, tag, before_fp, after_fp, state_fp, rewrite_fp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_token, seq) DO NOTHING
	`,
		rec.RunToken,
		rec.Seq,
		rec.PackageID,
		rec.RuleID,
		rec.StateID,
		rec.DiagramID,
		rec.RootID,
		boolToInt(rec.Applied),
		rec.Tag,
		rec.BeforeFP,
		rec.AfterFP,
		rec.StateFP,
		rec.RewriteFP,
	)
	if err != nil {
		return 0, false, fmt.Errorf("append rewrite: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("append rewrite: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("append rewrite: last insert id: %w", err)
		}
		inserted = true
	} else {
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM rewrite_log WHERE run_token = ? AND seq = ?
		`, rec.RunToken, rec.Seq).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("append rewrite: select existing: %w", err)
		}
		inserted = false
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("append rewrite: commit: %w", err)
	}

	return id, inserted, nil
}

// AppendTelemetry inserts one mixer tick. Duplicate (run_token, seq)
// appends are silently ignored.
func (s *Store) AppendTelemetry(ctx context.Context, rec TelemetryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mixer_telemetry
		(run_token, seq, loop_gain, admissible_volume, excluded_volume,
		 undecided_volume, collapse_ratio, conservation_error, transport_ready)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_token, seq) DO NOTHING
	`,
		rec.RunToken,
		rec.Seq,
		rec.LoopGain,
		rec.AdmissibleVolume,
		rec.ExcludedVolume,
		rec.UndecidedVolume,
		rec.CollapseRatio,
		rec.ConservationError,
		boolToInt(rec.TransportReady),
	)
	if err != nil {
		return fmt.Errorf("append telemetry: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
