package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/fleethours/internal/report"
	"github.com/goodtune/fleethours/internal/storage"
	"github.com/spf13/cobra"
)

var (
	reportsKind   string
	reportsFrom   string
	reportsTo     string
	reportsFormat string
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect stored daily report snapshots",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots of a kind",
	Long: `List stored snapshots whose window starts between --from and --to.
Both accept a date or an RFC3339 timestamp and default to the last 30 days.`,
	Args: cobra.NoArgs,
	RunE: runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsShow,
}

func init() {
	reportsListCmd.Flags().StringVarP(&reportsKind, "kind", "k", string(report.KindVehicles), "Report kind: vehicles or drivers")
	reportsListCmd.Flags().StringVar(&reportsFrom, "from", "", "Earliest window start (date or RFC3339)")
	reportsListCmd.Flags().StringVar(&reportsTo, "to", "", "Latest window start, date inclusive (date or RFC3339)")
	reportsShowCmd.Flags().StringVarP(&reportsFormat, "format", "f", "table", "Output format: table or json")

	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd)
	rootCmd.AddCommand(reportsCmd)
}

func runReportsList(cmd *cobra.Command, args []string) error {
	kind, err := report.ParseKind(reportsKind)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	tz, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		return fmt.Errorf("invalid report timezone: %w", err)
	}

	to := time.Now().In(tz)
	if reportsTo != "" {
		if to, err = parseBound(reportsTo, tz, true); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}
	from := to.AddDate(0, 0, -30)
	if reportsFrom != "" {
		if from, err = parseBound(reportsFrom, tz, false); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	snapshots, err := store.Reports().ListReports(cmd.Context(), string(kind), from, to)
	if err != nil {
		return err
	}

	if len(snapshots) == 0 {
		_, _ = color.New(color.FgYellow).Printf("No %s reports between %s and %s\n",
			kind, from.Format("2006-01-02"), to.Format("2006-01-02"))
		return nil
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("%-36s  %-16s  %-16s  %s\n", "ID", "WINDOW START", "WINDOW END", "GENERATED")
	for _, s := range snapshots {
		loc := tz
		if l, err := time.LoadLocation(s.Timezone); err == nil {
			loc = l
		}
		fmt.Printf("%-36s  %-16s  %-16s  %s\n", s.ID,
			s.WindowStart.In(loc).Format("2006-01-02 15:04"),
			s.WindowEnd.In(loc).Format("2006-01-02 15:04"),
			s.GeneratedAt.In(loc).Format(time.RFC3339))
	}
	return nil
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	if reportsFormat != "table" && reportsFormat != "json" {
		return fmt.Errorf("invalid format %q (must be table or json)", reportsFormat)
	}

	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	snapshot, err := store.Reports().GetReport(cmd.Context(), args[0])
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("report %s not found (it may have expired)", args[0])
	}
	if err != nil {
		return err
	}

	if reportsFormat == "json" {
		_, err := os.Stdout.Write(append(snapshot.Payload, '\n'))
		return err
	}

	var rep report.Report
	if err := json.Unmarshal(snapshot.Payload, &rep); err != nil {
		return fmt.Errorf("failed to decode report %s: %w", args[0], err)
	}
	printReport(os.Stdout, &rep)
	return nil
}
