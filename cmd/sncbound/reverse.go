package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/sncbound/internal/opt"
	"github.com/cwbudde/sncbound/internal/store"
)

func newReverseCmd(root *rootOptions) *cobra.Command {
	var (
		modelPath   string
		boundType   string
		probability float64
		search      searchFlags
	)

	cmd := &cobra.Command{
		Use:   "reverse",
		Short: "Compute the smallest backlog or delay for a violation probability",
		Long: `Minimizes the backlog or delay bound that the arrival described by the model
exceeds with at most the given probability. Theta stays below the model's
theta_max.`,
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

			res, err := g.ReverseBound(cmd.Context(), arrival, bt, probability, cfg.ThetaGranularity, cfg.HoelderGranularity)
			if err != nil {
				return err
			}

			rec := newRecord(m.Name, store.ModeReverse, cfg, res)
			rec.BoundType = bt.String()
			rec.Target = probability
			if err := r.finish(rec); err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), fmt.Sprintf("%s bound at probability %g", bt, probability), res, r.id)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Model file (required)")
	cmd.Flags().StringVar(&boundType, "type", "backlog", "Bound type: backlog, delay, output")
	cmd.Flags().Float64Var(&probability, "probability", 0, "Violation probability in (0, 1) (required)")
	search.register(cmd)

	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("probability")
	return cmd
}
