package cmd

import (
	"fmt"
	"io"

	"github.com/jmylchreest/epgnow/internal/epg"
	"github.com/spf13/cobra"
)

var nowCmd = &cobra.Command{
	Use:   "now <channel>",
	Short: "Show the program airing now",
	Args:  cobra.ExactArgs(1),
	RunE:  runNow,
}

var nextCmd = &cobra.Command{
	Use:   "next <channel>",
	Short: "Show upcoming programs",
	Args:  cobra.ExactArgs(1),
	RunE:  runNext,
}

func init() {
	rootCmd.AddCommand(nowCmd)
	rootCmd.AddCommand(nextCmd)
	nextCmd.Flags().Int("limit", 0, "number of programs (default epg.upcoming_limit)")
}

func runNow(cmd *cobra.Command, args []string) error {
	a := newApp(cmd.Context(), cfg, logger)
	defer a.Close()

	p, err := a.manager.CurrentProgram(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing airing on %s\n", args[0])
		return nil
	}
	printProgram(cmd.OutOrStdout(), *p)
	return nil
}

func runNext(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	a := newApp(cmd.Context(), cfg, logger)
	defer a.Close()

	list, err := a.manager.UpcomingPrograms(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing scheduled on %s\n", args[0])
		return nil
	}
	for _, p := range list {
		printProgram(cmd.OutOrStdout(), p)
	}
	return nil
}

func printProgram(w io.Writer, p epg.Program) {
	fmt.Fprintf(w, "%s-%s  %s", p.Start, p.Stop, p.Title)
	if p.Category != "" {
		fmt.Fprintf(w, " [%s]", p.Category)
	}
	fmt.Fprintln(w)
	if p.Description != "" {
		fmt.Fprintf(w, "             %s\n", p.Description)
	}
}
