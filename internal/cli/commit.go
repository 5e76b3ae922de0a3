package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikhilbhatia/commitcanvas/pkg/client"
)

func newCommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Trigger and inspect commits",
	}

	cmd.AddCommand(newCommitNowCmd())
	cmd.AddCommand(newCommitBackfillCmd())
	cmd.AddCommand(newCommitStreakCmd())
	cmd.AddCommand(newCommitPatternCmd())
	cmd.AddCommand(newCommitListCmd())

	return cmd
}

func newCommitNowCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "now",
		Short: "Produce a single commit immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveUserID(userID)
			if err != nil {
				return err
			}

			result, err := apiClient.Commits().Trigger(context.Background(), client.TriggerRequest{UserID: id})
			if err != nil {
				return err
			}

			return printResult(result)
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user ID")
	return cmd
}

func newCommitBackfillCmd() *cobra.Command {
	var userID int64
	var from, to string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Generate one backdated commit per day across a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveUserID(userID)
			if err != nil {
				return err
			}
			if from == "" || to == "" {
				return fmt.Errorf("both --from and --to are required (YYYY-MM-DD)")
			}

			result, err := apiClient.Commits().Backfill(context.Background(), client.BackfillRequest{
				UserID: id,
				From:   from,
				To:     to,
			})
			if err != nil {
				return err
			}

			return printResult(result)
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user ID")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	return cmd
}

func newCommitStreakCmd() *cobra.Command {
	var userID int64
	var dates string
	var force bool

	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Generate backdated commits for explicit dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveUserID(userID)
			if err != nil {
				return err
			}
			if dates == "" {
				return fmt.Errorf("--dates is required (comma-separated YYYY-MM-DD)")
			}

			result, err := apiClient.Commits().Streak(context.Background(), client.StreakRequest{
				UserID: id,
				Dates:  strings.Split(dates, ","),
				Force:  force,
			})
			if err != nil {
				return err
			}

			return printResult(result)
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user ID")
	cmd.Flags().StringVar(&dates, "dates", "", "comma-separated dates (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&force, "force", false, "delete existing records in the covered range first")
	return cmd
}

func newCommitPatternCmd() *cobra.Command {
	var userID int64
	var intensity, spacing int
	var alignment, endDate string

	cmd := &cobra.Command{
		Use:   "pattern <text>",
		Short: "Render text onto the contribution graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveUserID(userID)
			if err != nil {
				return err
			}

			result, err := apiClient.Commits().Pattern(context.Background(), client.PatternRequest{
				UserID:    id,
				Text:      args[0],
				Intensity: intensity,
				Alignment: alignment,
				Spacing:   spacing,
				EndDate:   endDate,
			})
			if err != nil {
				return err
			}

			return printResult(result)
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user ID")
	cmd.Flags().IntVar(&intensity, "intensity", 0, "pixel intensity 1-4")
	cmd.Flags().StringVar(&alignment, "align", "", "horizontal alignment: left, center, right")
	cmd.Flags().IntVar(&spacing, "spacing", 0, "columns between glyphs")
	cmd.Flags().StringVar(&endDate, "end", "", "newest column date (YYYY-MM-DD, default today)")
	return cmd
}

func newCommitListCmd() *cobra.Command {
	var userID int64
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's commit history",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveUserID(userID)
			if err != nil {
				return err
			}

			result, err := apiClient.Commits().List(context.Background(), id, page, pageSize)
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(result)
			}

			table := NewTable("ID", "KIND", "STATUS", "SCHEDULED", "MESSAGE", "RETRIES")
			for _, rec := range result.Data {
				table.AddRow(
					truncate(rec.ID, 8),
					rec.Kind,
					formatStatus(rec.Status),
					rec.ScheduledFor.Format("2006-01-02 15:04"),
					truncate(rec.Message, 32),
					strconv.Itoa(rec.RetryCount)+"/"+strconv.Itoa(rec.MaxRetries),
				)
			}
			table.Render()
			fmt.Printf("\nPage %d of %d (%d records)\n", result.Page, result.TotalPages, result.Total)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user ID")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "records per page")
	return cmd
}

func printResult(result *client.CommitResult) error {
	if getOutputFormat() != "table" {
		return printOutput(result)
	}

	if result.Skipped {
		fmt.Println("Skipped: a successful commit already exists for today")
		return nil
	}
	if result.Commit != nil {
		fmt.Printf("Commit %s: %s\n", formatStatus(result.Commit.Status), result.Commit.Message)
		if result.Commit.RemoteURL != "" {
			fmt.Printf("  %s\n", result.Commit.RemoteURL)
		}
		return nil
	}
	fmt.Printf("Created %d commits", result.CommitsCreated)
	if result.CommitsFailed > 0 {
		fmt.Printf(" (%d failed)", result.CommitsFailed)
	}
	fmt.Println()
	return nil
}
