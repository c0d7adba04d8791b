package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/factory"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/internal/config"
	"github.com/warp/b2b-engine/internal/logging"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a budget's renewals offline",
	Long: `Loads fixtures into memory, optionally tracks usage, then walks the
budget's renewal boundaries up to --until and evaluates its notification.

The fixtures come from a YAML/JSON file or a built-in scenario.

Examples:
  b2bsim simulate --scenario monthly-renewal --budget b-monthly --until 2024-06-01
  b2bsim simulate --fixtures ./budgets.yaml --budget b-1 --track 250 --until 2025-01-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fx, err := loadFixtures(cmd)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		req := simulateRequest{}
		id, _ := flags.GetString("budget")
		req.Budget = generic.EntityID(id)
		if req.Budget == "" {
			budgets := fx.Budgets
			if len(budgets) != 1 {
				return errors.New("--budget is required when the fixtures hold more than one budget")
			}
			req.Budget = budgets[0].ID
		}

		until, _ := flags.GetString("until")
		if req.Until, err = generic.ParseDate(until); err != nil {
			return fmt.Errorf("--until: %w", err)
		}
		if track, _ := flags.GetString("track"); track != "" {
			if req.Track, err = decimal.NewFromString(track); err != nil {
				return fmt.Errorf("--track: %w", err)
			}
		}

		level, _ := flags.GetString("log-level")
		if level == "" {
			level = "warn"
		}
		logger, err := logging.New(level)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		clock := generic.NewFixedClock(req.Until)
		a, err := buildApp(context.Background(), config.Default(), logger, generic.WithClock(clock))
		if err != nil {
			return err
		}
		defer a.Close(logger)

		ctx := context.Background()
		if err := fx.Load(ctx, a.handler.Fixtures); err != nil {
			return err
		}
		out, err := runSimulation(ctx, a.handler.Budgets, req)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), out)
	},
}

func init() {
	simulateCmd.Flags().StringP("fixtures", "f", "", "YAML or JSON fixtures file")
	simulateCmd.Flags().String("scenario", "", "Built-in scenario name instead of a file")
	simulateCmd.Flags().String("budget", "", "Budget id (optional when there is only one)")
	simulateCmd.Flags().String("until", "", "Simulate up to this date (YYYY-MM-DD)")
	simulateCmd.Flags().String("track", "", "Usage amount to track before time passes")
	_ = simulateCmd.MarkFlagRequired("until")
	simulateCmd.MarkFlagsMutuallyExclusive("fixtures", "scenario")
	rootCmd.AddCommand(simulateCmd)
}

type simulateRequest struct {
	Budget generic.EntityID
	Until  time.Time
	Track  decimal.Decimal
}

type simulateResult struct {
	Budget       budget.Budget   `json:"budget"`
	Summary      budget.Summary  `json:"summary"`
	Renewals     []time.Time     `json:"renewals"`
	Notification budget.Trigger  `json:"notification"`
	Tracked      decimal.Decimal `json:"tracked"`
}

func loadFixtures(cmd *cobra.Command) (*factory.Fixtures, error) {
	if name, _ := cmd.Flags().GetString("scenario"); name != "" {
		sc, err := factory.LookupScenario(name)
		if err != nil {
			return nil, err
		}
		return sc.Fixtures()
	}
	path, _ := cmd.Flags().GetString("fixtures")
	if path == "" {
		return nil, errors.New("one of --fixtures or --scenario is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return factory.Parse(data)
}

// runSimulation tracks first, so the usage lands in the period that the
// first renewal then clears.
func runSimulation(ctx context.Context, svc *budget.Service, req simulateRequest) (simulateResult, error) {
	res := simulateResult{Renewals: []time.Time{}, Tracked: req.Track}

	if req.Track.IsPositive() {
		if _, err := svc.Track(ctx, req.Budget, req.Track, "simulate"); err != nil {
			return res, err
		}
	}

	_, renewals, err := svc.SimulateTimePassage(ctx, req.Budget, req.Until)
	if err != nil {
		return res, err
	}
	if len(renewals) > 0 {
		res.Renewals = renewals
	}

	if res.Notification, err = svc.SimulateTrigger(ctx, req.Budget); err != nil {
		return res, err
	}
	if res.Budget, err = svc.Get(ctx, req.Budget); err != nil {
		return res, err
	}
	res.Summary = svc.Ledger().Summarize(res.Budget)
	return res, nil
}

func writeResult(w io.Writer, res simulateResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
