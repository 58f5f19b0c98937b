package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwbudde/sncbound/internal/model"
	"github.com/cwbudde/sncbound/internal/opt"
	"github.com/cwbudde/sncbound/internal/store"
	"github.com/cwbudde/sncbound/internal/symbolic"
)

func newBoundCmd(root *rootOptions) *cobra.Command {
	var (
		modelPath string
		boundType string
		value     float64
		search    searchFlags
	)

	cmd := &cobra.Command{
		Use:   "bound",
		Short: "Compute the violation probability of a backlog or delay bound",
		Long: `Minimizes the probability that the arrival described by the model exceeds
the given backlog, or the given delay (rounded up to whole time units).
Theta stays below the model's theta_max.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := search.apply(cmd, root.cfg)
			if err != nil {
				return err
			}
			bt, err := opt.ParseBoundType(boundType)
			if err != nil {
				return err
			}
			m, arrival, err := loadArrival(modelPath, bt)
			if err != nil {
				return err
			}

			g := newGradient(cfg)
			g.ThetaMax = m.ThetaMax
			r, err := startRun(cfg, g)
			if err != nil {
				return err
			}
			defer r.close()

			res, err := g.Bound(cmd.Context(), arrival, bt, value, cfg.ThetaGranularity, cfg.HoelderGranularity)
			if err != nil {
				return err
			}

			rec := newRecord(m.Name, store.ModeBound, cfg, res)
			rec.BoundType = bt.String()
			rec.Target = value
			if err := r.finish(rec); err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), fmt.Sprintf("%s %g violation probability", bt, value), res, r.id)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Model file (required)")
	cmd.Flags().StringVar(&boundType, "type", "backlog", "Bound type: backlog, delay, output")
	cmd.Flags().Float64Var(&value, "value", 0, "Backlog or delay to bound (required)")
	search.register(cmd)

	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("value")
	return cmd
}

// loadArrival reads the model at path. Output bounds never evaluate the
// arrival, so the model may lack one.
func loadArrival(path string, bt opt.BoundType) (*model.Model, *symbolic.Arrival, error) {
	m, err := model.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if m.Arrival == nil && bt != opt.Output {
		return nil, nil, fmt.Errorf("model %s has no sigma/rho arrival", path)
	}
	slog.Debug("Loaded model", "name", m.Name, "path", path, "theta_max", m.ThetaMax)
	return m, m.Arrival, nil
}
