package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check server connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if err := apiClient.Ping(ctx); err != nil {
				return fmt.Errorf("server unreachable: %w", err)
			}

			status, err := apiClient.Scheduler().Status(ctx)
			if err != nil {
				fmt.Println("Server:    " + formatStatus("ready"))
				fmt.Printf("Scheduler: (error: %v)\n", err)
				return nil
			}

			if getOutputFormat() != "table" {
				return printOutput(map[string]interface{}{
					"server":    "ok",
					"scheduler": status,
				})
			}

			fmt.Println("Server:    " + formatStatus("ready"))
			if status.Running {
				fmt.Println("Scheduler: " + formatStatus("running"))
			} else {
				fmt.Println("Scheduler: " + formatStatus("pending"))
			}
			return nil
		},
	}
}
