package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/queryir"
	"github.com/popslovesmusic/airs-sub008/internal/querysql"
)

// LoadPackage retrieves a package document by its fingerprint.
func (s *Store) LoadPackage(ctx context.Context, id string) (*ir.Package, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM packages WHERE id = ?
	`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load package %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}

	var pkg ir.Package
	if err := json.Unmarshal([]byte(doc), &pkg); err != nil {
		return nil, fmt.Errorf("load package: unmarshal: %w", err)
	}
	return &pkg, nil
}

// ListPackages returns all stored package ids in deterministic order.
func (s *Store) ListPackages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM packages ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan package id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packages: %w", err)
	}
	return ids, nil
}

// RunTokens returns all distinct run tokens in the rewrite log,
// ordered alphabetically.
func (s *Store) RunTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT run_token FROM rewrite_log
		ORDER BY run_token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list run tokens: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan run token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run tokens: %w", err)
	}
	return tokens, nil
}

const rewriteColumns = `id, run_token, seq, package_id, rule_id, state_id,
	diagram_id, root_id, applied, tag, before_fp, after_fp, state_fp, rewrite_fp`

// RewritesForRun returns the audit records of one run in replay order.
func (s *Store) RewritesForRun(ctx context.Context, runToken string) ([]RewriteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+rewriteColumns+`
		FROM rewrite_log
		WHERE run_token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runToken)
	if err != nil {
		return nil, fmt.Errorf("read rewrites: %w", err)
	}
	defer rows.Close()
	return scanRewrites(rows)
}

// QueryRewrites runs a validated filter against the rewrite log. The
// compiled SQL always carries the deterministic ordering.
func (s *Store) QueryRewrites(ctx context.Context, filter queryir.Predicate) ([]RewriteRecord, error) {
	query, args, err := querysql.Compile(queryir.Select{
		From:   queryir.TableRewriteLog,
		Filter: filter,
		Columns: []string{
			"id", "run_token", "seq", "package_id", "rule_id", "state_id",
			"diagram_id", "root_id", "applied", "tag", "before_fp",
			"after_fp", "state_fp", "rewrite_fp",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query rewrites: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rewrites: %w", err)
	}
	defer rows.Close()
	return scanRewrites(rows)
}

func scanRewrites(rows *sql.Rows) ([]RewriteRecord, error) {
	records := []RewriteRecord{}
	for rows.Next() {
		var rec RewriteRecord
		var applied int
		err := rows.Scan(
			&rec.ID, &rec.RunToken, &rec.Seq, &rec.PackageID, &rec.RuleID,
			&rec.StateID, &rec.DiagramID, &rec.RootID, &applied, &rec.Tag,
			&rec.BeforeFP, &rec.AfterFP, &rec.StateFP, &rec.RewriteFP,
		)
		if err != nil {
			return nil, fmt.Errorf("scan rewrite record: %w", err)
		}
		rec.Applied = applied != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rewrite records: %w", err)
	}
	return records, nil
}

// TelemetryForRun returns a run's mixer ticks in replay order.
func (s *Store) TelemetryForRun(ctx context.Context, runToken string) ([]TelemetryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_token, seq, loop_gain, admissible_volume,
		       excluded_volume, undecided_volume, collapse_ratio,
		       conservation_error, transport_ready
		FROM mixer_telemetry
		WHERE run_token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runToken)
	if err != nil {
		return nil, fmt.Errorf("read telemetry: %w", err)
	}
	defer rows.Close()

	records := []TelemetryRecord{}
	for rows.Next() {
		var rec TelemetryRecord
		var ready int
		err := rows.Scan(
			&rec.ID, &rec.RunToken, &rec.Seq, &rec.LoopGain,
			&rec.AdmissibleVolume, &rec.ExcludedVolume, &rec.UndecidedVolume,
			&rec.CollapseRatio, &rec.ConservationError, &ready,
		)
		if err != nil {
			return nil, fmt.Errorf("scan telemetry record: %w", err)
		}
		rec.TransportReady = ready != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry records: %w", err)
	}
	return records, nil
}

// LastSeq returns the highest seq used by a run across both logs.
// Used to resume the logical clock after a crash.
func (s *Store) LastSeq(ctx context.Context, runToken string) (int64, error) {
	var rewriteSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM rewrite_log WHERE run_token = ?
	`, runToken).Scan(&rewriteSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from rewrite_log: %w", err)
	}

	var telemetrySeq int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM mixer_telemetry WHERE run_token = ?
	`, runToken).Scan(&telemetrySeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from mixer_telemetry: %w", err)
	}

	if telemetrySeq > rewriteSeq {
		return telemetrySeq, nil
	}
	return rewriteSeq, nil
}
