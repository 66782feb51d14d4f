package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/resilia-grid/neurogrid/config"
	"github.com/resilia-grid/neurogrid/core/dispatch"
	"github.com/resilia-grid/neurogrid/core/model"
	"github.com/resilia-grid/neurogrid/infra/logger"
)

var planBalanceKW float64

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute a one-shot dispatch plan for a synthetic imbalance",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().Float64Var(&planBalanceKW, "balance", 20, "net balance in kW, surplus positive")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	planner := dispatch.NewPlanner(cfg.Dispatch, logger.New("plan-command"))
	now := time.Now()
	win := model.ForecastWindow{
		GeneratedAt: now,
		StepSize:    time.Duration(cfg.Dispatch.CycleSeconds) * time.Second,
		Steps: []model.ForecastStep{
			{Timestamp: now, BalanceKW: planBalanceKW, Confidence: 0},
		},
	}
	plan, err := planner.Plan(win, cfg.Tiers)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "plan %s for %.1f kW\n", plan.ID, planBalanceKW)
	for tierID, flow := range plan.Flows {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %+.1f kW\n", tierID, flow)
	}
	if plan.Residual.Kind != model.ResidualNone {
		fmt.Fprintf(cmd.OutOrStdout(), "  residual: %s %.1f kW\n", plan.Residual.Kind, plan.Residual.PowerKW)
	}
	return nil
}
