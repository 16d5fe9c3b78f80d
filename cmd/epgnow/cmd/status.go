package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmylchreest/epgnow/internal/database"
	"github.com/jmylchreest/epgnow/internal/urlutil"
	"github.com/jmylchreest/epgnow/pkg/format"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored guide statistics and recent rebuilds",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Int("runs", 5, "number of recent rebuilds to show")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	runs, _ := cmd.Flags().GetInt("runs")

	a := newApp(cmd.Context(), cfg, logger)
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Source:        %s\n", sourceLabel(cfg.EPG.URL))
	fmt.Fprintf(out, "Timezone:      %s\n", a.manager.Status().Timezone)
	fmt.Fprintf(out, "Schedule:      %s (%s)\n", format.CronDescription(cfg.EPG.UpdateCron), cfg.EPG.UpdateCron)
	fmt.Fprintf(out, "Last update:   %s\n", format.RelativeTime(a.manager.LastUpdate()))
	fmt.Fprintf(out, "Needs update:  %t\n", a.manager.NeedsUpdate())

	if a.store == nil || !a.store.Initialized() {
		fmt.Fprintln(out, "Database:      unavailable")
		return nil
	}

	fmt.Fprintf(out, "Database:      %s%s\n", a.db.Driver(), databaseSize())
	counts, err := a.store.Counts(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Channels:      %s\n", format.Number(int64(counts.Channels)))
	fmt.Fprintf(out, "Icons:         %s\n", format.Number(int64(counts.Icons)))
	fmt.Fprintf(out, "Programs:      %s\n", format.Number(int64(counts.Programs)))

	if runs <= 0 {
		return nil
	}
	recent, err := a.store.RecentRuns(cmd.Context(), runs)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nRecent rebuilds:")
	for _, r := range recent {
		fmt.Fprintf(out, "  %-10s %-10s %s programs, %d/%d sources failed, %s\n",
			humanize.Time(r.StartedAt), r.Status, format.NumberCompact(int64(r.Programs)),
			r.FailedURLs, r.Sources, r.Duration().Round(time.Millisecond))
	}
	return nil
}

func sourceLabel(url string) string {
	if url == "" {
		return "(not configured)"
	}
	return urlutil.Redact(url)
}

// databaseSize returns " (size)" for a file based SQLite database.
func databaseSize() string {
	if cfg.Database.Driver != database.DriverSQLite {
		return ""
	}
	path, _, _ := strings.Cut(strings.TrimPrefix(cfg.Database.DSN, "file:"), "?")
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return " (" + format.Bytes(uint64(info.Size())) + ")"
}
