package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/epgnow/internal/models"
	"github.com/jmylchreest/epgnow/pkg/format"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update [url]",
	Short: "Rebuild the guide once",
	Long: `Download and store the guide from url, or epg.url when omitted,
then print a summary of the rebuild.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	url := cfg.EPG.URL
	if len(args) == 1 {
		url = args[0]
	}
	if url == "" {
		return errors.New("no guide source: pass a url or set epg.url")
	}

	a := newApp(cmd.Context(), cfg, logger)
	defer a.Close()

	report, _ := a.manager.Update(cmd.Context(), url)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:        %s\n", report.RunID)
	fmt.Fprintf(out, "Status:     %s\n", report.Status)
	fmt.Fprintf(out, "Sources:    %d (%d failed)\n", report.Sources, report.FailedSources)
	fmt.Fprintf(out, "Channels:   %s\n", format.Number(int64(report.Channels)))
	fmt.Fprintf(out, "Programs:   %s\n", format.Number(int64(report.Programs)))
	fmt.Fprintf(out, "Dropped:    %s\n", format.Number(int64(report.Dropped)))
	fmt.Fprintf(out, "Duration:   %s\n", report.Duration.Round(time.Millisecond))
	if a.store == nil || !a.store.Initialized() {
		fmt.Fprintln(out, "Warning:    database unavailable, nothing was persisted")
	}

	if report.Status == models.UpdateRunFailed {
		return errors.New("guide update failed")
	}
	return nil
}
