package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "time/tzdata"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "queue-service",
	Short: "Reconciliation and settlement job queue service",
	Long: `queue-service lets back-office staff enqueue collector reconciliation and
settlement runs, fire them against the execution backend and follow each job
until it completes, including jobs interrupted by a restart.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file if it exists
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found, using environment variables or flags")
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), configPath)
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect persisted job queues",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print a persisted queue as it would be recovered",
	Long: `Print the jobs stored for a queue variant, with running jobs flagged as
recovered exactly as the service would on start. The stored queue is not
modified.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		variant, _ := cmd.Flags().GetString("variant")
		state, _ := cmd.Flags().GetString("state")
		asJSON, _ := cmd.Flags().GetBool("json")
		return runJobsList(cmd.Context(), cmd.OutOrStdout(), configPath, variant, state, asJSON)
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print collectors, backend endpoints and data lags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalog(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default $RECON_QUEUE_CONFIG_PATH or configs/queue-service/config.yaml)")

	jobsListCmd.Flags().String("variant", "reconciliation", "queue variant: reconciliation or settlement")
	jobsListCmd.Flags().String("state", "", "only show jobs in this state")
	jobsListCmd.Flags().Bool("json", false, "print JSON instead of a table")

	jobsCmd.AddCommand(jobsListCmd)
	rootCmd.AddCommand(serveCmd, jobsCmd, catalogCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
