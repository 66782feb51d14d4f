package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/resilia-grid/neurogrid/config"
	"github.com/resilia-grid/neurogrid/core/model"
	"github.com/resilia-grid/neurogrid/core/planlog"
)

var plansSinceHours int

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Plan log related commands",
}

var plansLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recently committed dispatch plans",
	RunE:  runPlansLs,
}

func init() {
	plansLsCmd.Flags().IntVar(&plansSinceHours, "since", 24, "lookback window in hours")
	plansCmd.AddCommand(plansLsCmd)
	rootCmd.AddCommand(plansCmd)
}

func runPlansLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	var store planlog.Store
	switch cfg.PlanLog.Backend {
	case "sqlite":
		store, err = planlog.NewSQLiteStore(cfg.PlanLog.Path)
	default:
		store, err = planlog.NewJSONLStore(cfg.PlanLog.Path)
	}
	if err != nil {
		return fmt.Errorf("open plan log: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error while closing plan log: %v\n", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	records, err := store.Query(ctx, planlog.Query{Start: time.Now().Add(-time.Duration(plansSinceHours) * time.Hour)})
	if err != nil {
		return err
	}
	for _, rec := range records {
		line := fmt.Sprintf("%s  %s  %s  %+.1f kW", rec.Timestamp.Format(time.RFC3339), rec.Plan.ID, rec.State, rec.Plan.TotalFlowKW())
		if rec.Plan.Residual.Kind != model.ResidualNone {
			line += fmt.Sprintf("  residual %s %.1f kW", rec.Plan.Residual.Kind, rec.Plan.Residual.PowerKW)
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
