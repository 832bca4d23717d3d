package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/fleethours/internal/activity"
	"github.com/goodtune/fleethours/internal/report"
	"github.com/spf13/cobra"
)

var (
	reportFrom      string
	reportTo        string
	reportLocations []string
	reportTimezone  string
	reportFormat    string
)

var reportCmd = &cobra.Command{
	Use:   "report vehicles|drivers",
	Short: "Run a report once and print it",
	Long: `Reconstruct sessions for every requested location over a window and print
the merged report.

--from and --to accept a date (YYYY-MM-DD, interpreted in the report time zone)
or an RFC3339 timestamp. A date given to --to includes that whole day. Without
either flag the report covers yesterday.

Examples:
  fleethours report vehicles --location 5f1c0a... --location 5f1c0b...
  fleethours report drivers --from 2024-01-01 --to 2024-01-07 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	for _, kind := range report.Kinds {
		reportCmd.ValidArgs = append(reportCmd.ValidArgs, string(kind))
	}
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Window start (date or RFC3339)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "Window end (date inclusive, or RFC3339 exclusive)")
	reportCmd.Flags().StringArrayVarP(&reportLocations, "location", "l", nil, "Location ID to include (repeatable, defaults to report.locations)")
	reportCmd.Flags().StringVar(&reportTimezone, "timezone", "", "Report time zone (defaults to report.timezone)")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "table", "Output format: table or json")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	kind, err := report.ParseKind(args[0])
	if err != nil {
		return err
	}
	if reportFormat != "table" && reportFormat != "json" {
		return fmt.Errorf("invalid format %q (must be table or json)", reportFormat)
	}

	// Logs go to stderr so stdout stays a clean report
	a, err := newApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	tz := a.timezone
	if reportTimezone != "" {
		tz, err = time.LoadLocation(reportTimezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", reportTimezone, err)
		}
	}

	w, err := parseWindow(reportFrom, reportTo, tz, time.Now())
	if err != nil {
		return err
	}

	locations := reportLocations
	if len(locations) == 0 {
		locations = a.cfg.Report.Locations
	}
	if len(locations) == 0 {
		return fmt.Errorf("no locations given (use --location or set report.locations)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := a.generator.Generate(ctx, kind, w, locations)
	if err != nil {
		return fmt.Errorf("failed to generate %s report: %w", kind, err)
	}

	if reportFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printReport(os.Stdout, rep)
	return nil
}

// parseWindow turns the --from/--to flags into a window in tz. Empty flags
// select the local day before now.
func parseWindow(from, to string, tz *time.Location, now time.Time) (activity.Window, error) {
	if from == "" && to == "" {
		return activity.DayWindow(now.In(tz).AddDate(0, 0, -1), tz), nil
	}
	if from == "" {
		return activity.Window{}, fmt.Errorf("--from is required when --to is set")
	}

	start, err := parseBound(from, tz, false)
	if err != nil {
		return activity.Window{}, fmt.Errorf("invalid --from: %w", err)
	}

	var end time.Time
	if to == "" {
		// A lone --from covers one day
		end = start.AddDate(0, 0, 1)
	} else if end, err = parseBound(to, tz, true); err != nil {
		return activity.Window{}, fmt.Errorf("invalid --to: %w", err)
	}

	return activity.NewWindowIn(start, end, tz)
}

func parseBound(s string, tz *time.Location, inclusiveDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation("2006-01-02", s, tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC3339", s)
	}
	if inclusiveDay {
		day = day.AddDate(0, 0, 1)
	}
	return day, nil
}

// column is one numeric column of the table output.
type column struct {
	metric    string
	attribute activity.Attribute // empty for hours
}

func (c column) header() string {
	if c.attribute == "" {
		return c.metric + " (h)"
	}
	return c.metric + "." + string(c.attribute)
}

func (c column) value(v activity.MetricValues) float64 {
	if c.attribute == "" {
		return v.Hours
	}
	return v.Attributes[c.attribute]
}

// reportColumns lists hours and every attribute for each metric, in metric order
func reportColumns(rep *report.Report) []column {
	var cols []column
	for _, m := range rep.Metrics {
		cols = append(cols, column{metric: m})

		seen := make(map[activity.Attribute]struct{})
		for _, loc := range rep.Locations {
			for a := range loc.Totals[m].Attributes {
				seen[a] = struct{}{}
			}
		}
		attrs := make([]string, 0, len(seen))
		for a := range seen {
			attrs = append(attrs, string(a))
		}
		sort.Strings(attrs)
		for _, a := range attrs {
			cols = append(cols, column{metric: m, attribute: activity.Attribute(a)})
		}
	}
	return cols
}

// printReport prints a report as one table per location
func printReport(out io.Writer, rep *report.Report) {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow)

	_, _ = cyan.Fprintln(out, strings.Repeat("━", 60))
	_, _ = cyan.Fprintf(out, "%s REPORT\n", strings.ToUpper(string(rep.Kind)))
	_, _ = cyan.Fprintln(out, strings.Repeat("━", 60))
	_, _ = fmt.Fprintf(out, "Window:    %s → %s (%s)\n",
		rep.WindowStart.Format("2006-01-02 15:04"), rep.WindowEnd.Format("2006-01-02 15:04"), rep.Timezone)
	_, _ = fmt.Fprintf(out, "Generated: %s\n", rep.GeneratedAt.Format(time.RFC3339))

	if len(rep.Locations) == 0 {
		_, _ = yellow.Fprintln(out, "\nNo activity in this window.")
		return
	}

	cols := reportColumns(rep)
	for _, loc := range rep.Locations {
		fmt.Fprintln(out)
		title := loc.LocationID
		if loc.LocationName != "" {
			title = fmt.Sprintf("%s (%s)", loc.LocationName, loc.LocationID)
		}
		_, _ = cyan.Fprintf(out, "Location: %s\n", title)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		headers := make([]string, 0, len(cols)+1)
		headers = append(headers, "target")
		for _, c := range cols {
			headers = append(headers, c.header())
		}
		fmt.Fprintln(tw, strings.Join(headers, "\t")+"\t")

		for _, row := range loc.Rows {
			cells := []string{rowLabel(row)}
			for _, c := range cols {
				cells = append(cells, fmt.Sprintf("%.2f", c.value(row.Metrics[c.metric])))
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
		}

		totals := []string{"TOTAL"}
		for _, c := range cols {
			totals = append(totals, fmt.Sprintf("%.2f", c.value(loc.Totals[c.metric].MetricValues)))
		}
		fmt.Fprintln(tw, strings.Join(totals, "\t")+"\t")
		_ = tw.Flush()

		excluded := 0
		for _, m := range rep.Metrics {
			excluded += loc.Totals[m].Excluded
		}
		if excluded > 0 {
			_, _ = yellow.Fprintf(out, "%d session(s) excluded by attribute rules\n", excluded)
		}
	}
}

func rowLabel(row activity.MergedReportRow) string {
	if row.DisplayName == "" {
		return row.TargetID
	}
	return row.DisplayName
}
