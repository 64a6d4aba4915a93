package store

import (
	"context"
	"fmt"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/rewrite"
)

// ReplayReport is the outcome of re-executing a run's rewrite log
// against its base package.
type ReplayReport struct {
	RunToken string `json:"run_token"`
	Steps    int    `json:"steps"`
	Verified bool   `json:"verified"`
	// DivergedSeq and Reason are set when verification failed at a
	// specific record.
	DivergedSeq int64  `json:"diverged_seq,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// VerifyRun replays a run's rewrite log from its stored base package
// and checks every recorded fingerprint. A run verifies when every
// replayed step reproduces the recorded outcome exactly; the first
// mismatch stops the replay and is reported, never papered over.
func (s *Store) VerifyRun(ctx context.Context, runToken string) (ReplayReport, error) {
	report := ReplayReport{RunToken: runToken}

	records, err := s.RewritesForRun(ctx, runToken)
	if err != nil {
		return report, err
	}
	if len(records) == 0 {
		report.Verified = true
		return report, nil
	}

	pkg, err := s.LoadPackage(ctx, records[0].PackageID)
	if err != nil {
		return report, err
	}

	for _, rec := range records {
		report.Steps++
		diverged := func(reason string) (ReplayReport, error) {
			report.Verified = false
			report.DivergedSeq = rec.Seq
			report.Reason = reason
			return report, nil
		}

		diagram := pkg.FindDiagram(rec.DiagramID)
		state := pkg.FindState(rec.StateID)
		if diagram == nil || state == nil {
			return diverged(fmt.Sprintf("diagram %s or state %s missing from package", rec.DiagramID, rec.StateID))
		}
		csi := pkg.FindCSI(state.CSIID)

		beforeFP, err := ir.DiagramFingerprint(diagram)
		if err != nil {
			return report, fmt.Errorf("verify run: %w", err)
		}
		if beforeFP != rec.BeforeFP {
			return diverged(fmt.Sprintf("diagram fingerprint %s does not match recorded %s", beforeFP, rec.BeforeFP))
		}

		var rule *ir.RewriteRule
		for i := range pkg.RewriteRules {
			if pkg.RewriteRules[i].ID == rec.RuleID {
				rule = &pkg.RewriteRules[i]
			}
		}
		if rule == nil {
			return diverged(fmt.Sprintf("rule %s missing from package", rec.RuleID))
		}

		matches, err := rewrite.FindMatches(diagram, *rule, 0)
		if err != nil {
			return report, fmt.Errorf("verify run: %w", err)
		}
		var site *rewrite.Match
		for i := range matches {
			if matches[i].Root == rec.RootID {
				site = &matches[i]
				break
			}
		}
		if site == nil {
			return diverged(fmt.Sprintf("rule %s no longer matches at %s", rec.RuleID, rec.RootID))
		}

		alloc := rewrite.NewIDAllocator(diagram)
		res, err := rewrite.Apply(diagram, *state, *site, *rule, alloc, pkg.Constraints, csi)
		if err != nil {
			return report, fmt.Errorf("verify run: %w", err)
		}
		if res.Applied != rec.Applied || res.Tag != rec.Tag {
			return diverged(fmt.Sprintf("outcome (applied=%t, tag=%q) does not match recorded (applied=%t, tag=%q)",
				res.Applied, res.Tag, rec.Applied, rec.Tag))
		}

		afterFP, err := ir.DiagramFingerprint(&res.Diagram)
		if err != nil {
			return report, fmt.Errorf("verify run: %w", err)
		}
		if afterFP != rec.AfterFP {
			return diverged(fmt.Sprintf("replayed fingerprint %s does not match recorded %s", afterFP, rec.AfterFP))
		}
		stateFP, err := ir.StateFingerprint(&res.State)
		if err != nil {
			return report, fmt.Errorf("verify run: %w", err)
		}
		if stateFP != rec.StateFP {
			return diverged(fmt.Sprintf("replayed state fingerprint %s does not match recorded %s", stateFP, rec.StateFP))
		}

		*diagram = res.Diagram
		*state = res.State
	}

	report.Verified = true
	return report, nil
}
