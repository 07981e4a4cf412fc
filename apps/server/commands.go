package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"pumpkin-tracker/tally"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var errClearNotConfirmed = errors.New("refusing to clear all winners without --yes")

func newImportCmd(a *app) *cobra.Command {
	var fromExport bool
	cmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "Add pasted giveaway results, or restore an export with --export",
		Example: `  tracker import results.txt
  pbpaste | tracker import
  tracker import --export pumpkin-winners-2026-10-31.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			tr, release, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if fromExport {
				r, err := tally.ParseExport(raw)
				if err != nil {
					return fmt.Errorf("read export: %w", err)
				}
				out := tr.Restore(cmd.Context(), r)
				if out.Warning != "" {
					return errors.New(out.Warning)
				}
				fmt.Fprintln(cmd.OutOrStdout(), out.Message)
				return nil
			}

			out, err := tr.Submit(cmd.Context(), string(raw))
			if err != nil {
				return err
			}
			if out.Warning != "" {
				return errors.New(out.Warning)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromExport, "export", false, "Input is an export file; replace all winners with it")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all winners to a dated JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, release, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			name, body, err := tr.Export()
			if err != nil {
				return err
			}
			if output == "-" {
				_, err := cmd.OutOrStdout().Write(body)
				return err
			}
			if output == "" {
				output = name
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d participant(s) to %s\n", tr.Stats().Participants, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path, - for stdout (default pumpkin-winners-<date>.json)")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every tracked winner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errClearNotConfirmed
			}
			tr, release, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			out, err := tr.ConfirmClear(cmd.Context(), tr.RequestClear().Token)
			if err != nil {
				return err
			}
			if out.Warning != "" {
				return errors.New(out.Warning)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing all data")
	return cmd
}

func newLeaderboardCmd(a *app) *cobra.Command {
	var q tally.Query
	cmd := &cobra.Command{
		Use:     "leaderboard",
		Aliases: []string{"ls"},
		Short:   "Print the current standings",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, release, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			renderLeaderboard(cmd.OutOrStdout(), tr.View(q), tr.Stats())
			return nil
		},
	}
	cmd.Flags().StringVarP(&q.Search, "search", "s", "", "Filter by name or user id")
	cmd.Flags().BoolVar(&q.HidePromoted, "hide-promoted", false, "Hide Pumpkin Kings")
	cmd.Flags().IntVarP(&q.Page, "page", "p", 1, "Page number")
	return cmd
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	kingStyle   = cellStyle.Foreground(lipgloss.Color("208"))
)

func renderLeaderboard(w io.Writer, page tally.Page, stats tally.Stats) {
	rows := make([][]string, 0, len(page.Items))
	for _, s := range page.Items {
		status := strconv.Itoa(s.Remaining) + " to go"
		if s.Promoted {
			status = "Pumpkin King"
		}
		rows = append(rows, []string{
			strconv.Itoa(s.Rank),
			s.DisplayName,
			s.ExternalID,
			fmt.Sprintf("%d/%d", s.Count, tally.Cap),
			status,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Name", "User ID", "Pumpkins", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(page.Items) && page.Items[row].Promoted:
				return kingStyle
			default:
				return cellStyle
			}
		})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "Page %d of %d, %d matching\n", page.Page, page.PageCount, page.Total)
	fmt.Fprintf(w, "%d hunters, %d Pumpkin Kings, %d pumpkins total\n",
		stats.Participants, stats.Promoted, stats.TotalWins)
}
