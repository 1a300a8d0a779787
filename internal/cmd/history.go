package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/rmrfslashbin/avrflash/internal/db"
	"github.com/rmrfslashbin/avrflash/internal/toolchain"
	"github.com/rmrfslashbin/avrflash/pkg/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	historyProject   string
	historyOperation string
	historyLimit     int
	historyClear     bool
)

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded compile and upload runs",
	Long: `List recent runs from the history database, newest first, followed by
totals across all runs.

Example:
  avrflash history --project blink --limit 5
  avrflash history --operation upload
  avrflash history --clear`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()

		if viper.GetBool("history.disabled") {
			return errors.New("run history is disabled")
		}

		q, err := historyQuery(historyProject, historyOperation, historyLimit)
		if err != nil {
			return err
		}

		path, err := historyPath(viper.GetViper())
		if err != nil {
			return err
		}

		database, err := db.InitDatabase(path)
		if err != nil {
			logger.Error("failed to open history database", "path", path, "error", err)
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer database.Close()

		if historyClear {
			if err := db.ClearHistory(database); err != nil {
				return err
			}
			logger.Info("history cleared", "path", path)
			return nil
		}

		runs, err := db.ListRuns(database, q)
		if err != nil {
			return err
		}
		stats, err := db.GetStats(database)
		if err != nil {
			return err
		}

		return printHistory(cmd.OutOrStdout(), runs, stats)
	},
}

// historyQuery validates the listing filters. The project name is normalized
// the same way compile and upload record it.
func historyQuery(project, operation string, limit int) (models.RunQuery, error) {
	q := models.RunQuery{Limit: limit}
	if project != "" {
		name, err := toolchain.NormalizeProject(project)
		if err != nil {
			return q, err
		}
		q.Project = name
	}
	if operation != "" {
		op, err := models.ParseOperation(operation)
		if err != nil {
			return q, err
		}
		q.Operation = &op
	}
	return q, nil
}

func printHistory(out io.Writer, runs []models.Run, stats *models.HistoryStats) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tPROJECT\tOPERATION\tSTATUS\tEXIT\tDURATION\tIMAGE")
		for _, r := range runs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%d\n",
				r.ID,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Project,
				r.Operation,
				r.Status,
				r.ExitCode,
				r.Duration.Round(time.Millisecond),
				r.ImageBytes,
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\n%d runs (%d failed) across %d sketches: %d compile, %d upload, %d flash\n",
		stats.TotalRuns, stats.FailedRuns, stats.Projects,
		stats.CompileRuns, stats.UploadRuns, stats.FlashRuns)
	if !stats.LastUploadedAt.IsZero() {
		fmt.Fprintf(out, "Last successful upload: %s\n", stats.LastUploadedAt.Local().Format(time.RFC1123))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyProject, "project", "", "only show runs for this sketch")
	historyCmd.Flags().StringVar(&historyOperation, "operation", "", "only show compile, upload or flash runs")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to show")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "delete all recorded runs")
}
