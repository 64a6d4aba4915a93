package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popslovesmusic/airs-sub008/internal/engine"
	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/mixer"
	"github.com/popslovesmusic/airs-sub008/internal/ssp"
	"github.com/popslovesmusic/airs-sub008/internal/store"
)

// MixResult is the final observation of a mix loop.
type MixResult struct {
	RunToken string        `json:"run_token,omitempty"`
	Ticks    int           `json:"ticks"`
	Metrics  mixer.Metrics `json:"metrics"`
}

// NewMixCommand creates the mix command.
func NewMixCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		cells  int
		mass   float64
		ticks  int
		alpha  float64
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "mix",
		Short: "Run the numeric collapse loop over an I/N/U field triple",
		Long: `Seed the undecided field with the conserved mass, then collapse a
fraction of it toward I each tick and observe the mixer metrics.
With --db, every tick is appended to the telemetry log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMix(rootOpts, cells, mass, ticks, alpha, dbPath, cmd)
		},
	}

	cmd.Flags().IntVar(&cells, "cells", 100, "field length")
	cmd.Flags().Float64Var(&mass, "mass", 1000, "conserved total mass")
	cmd.Flags().IntVar(&ticks, "ticks", 20, "collapse ticks to run")
	cmd.Flags().Float64Var(&alpha, "alpha", 0.05, "collapse fraction per tick")
	cmd.Flags().StringVar(&dbPath, "db", "", "record telemetry to this SQLite database")
	return cmd
}

func runMix(opts *RootOptions, cells int, mass float64, ticks int, alpha float64, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if cells <= 0 || ticks <= 0 {
		msg := "cells and ticks must be positive"
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	var s *store.Store
	var runToken string
	if dbPath != "" {
		var err error
		s, err = store.Open(dbPath)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
		defer s.Close()
		runToken = engine.UUIDv7Generator{}.Generate()
	}

	eng := ssp.NewMemoryEngine()
	triple := [3]ir.Ternary{ir.TernaryI, ir.TernaryN, ir.TernaryU}
	procs := make([]*ssp.Processor, 3)
	for i, role := range triple {
		h, err := eng.Create(role, cells, mass)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
		procs[i], err = eng.Attach(h)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
	}
	sspI, sspN, sspU := procs[0], procs[1], procs[2]

	// All mass starts undecided.
	field := sspU.Field()
	for i := range field {
		field[i] = mass / float64(cells)
	}

	m, err := mixer.New(mass, mixer.DefaultConfig())
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	mask := ssp.NewCollapseMask(cells)
	for i := range mask.MaskI {
		mask.MaskI[i] = 1
	}

	clock := engine.NewClock()
	for tick := 0; tick < ticks; tick++ {
		if err := m.Step(sspI, sspN, sspU); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
		if err := m.RequestCollapse(sspI, sspN, sspU, mask, alpha); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return NewExitError(ExitFailure, err.Error())
		}
		sspI.CommitStep()
		sspN.CommitStep()
		sspU.CommitStep()

		mm := m.Metrics()
		formatter.VerboseLog("tick %d: I=%.3f N=%.3f U=%.3f gain=%.4f ready=%t",
			tick, mm.AdmissibleVolume, mm.ExcludedVolume, mm.UndecidedVolume, mm.LoopGain, mm.TransportReady)

		if s != nil {
			err := s.AppendTelemetry(cmd.Context(), store.TelemetryRecord{
				RunToken:          runToken,
				Seq:               clock.Next(),
				LoopGain:          mm.LoopGain,
				AdmissibleVolume:  mm.AdmissibleVolume,
				ExcludedVolume:    mm.ExcludedVolume,
				UndecidedVolume:   mm.UndecidedVolume,
				CollapseRatio:     mm.CollapseRatio,
				ConservationError: mm.ConservationError,
				TransportReady:    mm.TransportReady,
			})
			if err != nil {
				_ = formatter.Error(ErrCodeStore, err.Error(), nil)
				return NewExitError(ExitCommandError, err.Error())
			}
		}
	}

	result := MixResult{RunToken: runToken, Ticks: ticks, Metrics: m.Metrics()}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	mm := result.Metrics
	fmt.Fprintf(formatter.Writer, "after %d tick(s): I=%.3f N=%.3f U=%.3f\n",
		ticks, mm.AdmissibleVolume, mm.ExcludedVolume, mm.UndecidedVolume)
	fmt.Fprintf(formatter.Writer, "collapse_ratio=%.4f loop_gain=%.4f conservation_error=%.6f transport_ready=%t\n",
		mm.CollapseRatio, mm.LoopGain, mm.ConservationError, mm.TransportReady)
	return nil
}
