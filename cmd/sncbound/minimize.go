package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/sncbound/internal/config"
	"github.com/cwbudde/sncbound/internal/model"
	"github.com/cwbudde/sncbound/internal/opt"
	"github.com/cwbudde/sncbound/internal/store"
	"github.com/cwbudde/sncbound/internal/symbolic"
)

func newMinimizeCmd(root *rootOptions) *cobra.Command {
	var (
		modelPath string
		strategy  string
		search    searchFlags
	)

	cmd := &cobra.Command{
		Use:   "minimize",
		Short: "Minimize a model's objective over theta and the Hölder parameters",
		Long: `Minimizes the objective of the model, or max(sigma, rho) when it has none.
The gradient strategy walks a grid from the smallest theta; the mayfly
strategy samples conjugate Hölder pairs and needs a finite theta_max.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := search.apply(cmd, root.cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strategy") {
				cfg.Strategy = strategy
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			m, err := model.Load(modelPath)
			if err != nil {
				return err
			}
			obj, err := objective(m)
			if err != nil {
				return err
			}
			expr, err := opt.NewExpression(obj, m.ThetaMax)
			if err != nil {
				return err
			}

			var g *opt.Gradient
			if cfg.Strategy == config.StrategyGradient {
				g = newGradient(cfg)
			}
			r, err := startRun(cfg, g)
			if err != nil {
				return err
			}
			defer r.close()

			slog.Info("Starting minimization", "model", m.Name, "objective", obj.String(), "strategy", cfg.Strategy)
			start := time.Now()

			var res *opt.Result
			switch cfg.Strategy {
			case config.StrategyMayfly:
				optimizer := opt.NewMayfly(cfg.Mayfly.Iterations, cfg.Mayfly.Population, cfg.Mayfly.Seed)
				res, err = opt.GlobalMinimize(cmd.Context(), expr, optimizer, cfg.Mayfly.MaxP)
			default:
				res, err = g.Minimize(cmd.Context(), expr, cfg.ThetaGranularity, cfg.HoelderGranularity)
			}
			if err != nil {
				return err
			}
			slog.Info("Minimization complete", "cost", res.Cost, "theta", res.Position.Theta, "elapsed", time.Since(start))

			rec := newRecord(m.Name, store.ModeMinimize, cfg, res)
			rec.Strategy = cfg.Strategy
			if err := r.finish(rec); err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), "minimum", res, r.id)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Model file (required)")
	cmd.Flags().StringVar(&strategy, "strategy", config.StrategyGradient, "Search strategy: gradient, mayfly (overrides config)")
	search.register(cmd)

	cmd.MarkFlagRequired("model")
	return cmd
}

func objective(m *model.Model) (symbolic.Function, error) {
	if m.Objective != nil {
		return m.Objective, nil
	}
	if m.Arrival == nil {
		return nil, fmt.Errorf("model %q has nothing to minimize", m.Name)
	}
	return symbolic.NewMax(m.Arrival.Sigma, m.Arrival.Rho)
}
