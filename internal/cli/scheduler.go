package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSchedulerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Inspect the commit scheduler",
	}

	cmd.AddCommand(newSchedulerStatusCmd())
	return cmd
}

func newSchedulerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler state and registered cadences",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := apiClient.Scheduler().Status(context.Background())
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(status)
			}

			state := "stopped"
			if status.Running {
				state = "running"
			} else if status.Initialized {
				state = "initialized"
			}

			fmt.Printf("Scheduler:  %s\n", formatStatus(state))
			fmt.Printf("Timezone:   %s\n", status.Timezone)
			fmt.Printf("Local time: %s\n", status.Now.Format("2006-01-02 15:04:05"))
			if len(status.ActiveCadences) > 0 {
				fmt.Printf("Cadences:   %s\n", strings.Join(status.ActiveCadences, ", "))
			}
			return nil
		},
	}
}
