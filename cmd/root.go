package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calendarassist application
var rootCmd = &cobra.Command{
	Use:   "calendarassist",
	Short: "Calendar assistant backed by a hosted tool gateway",
	Long: `calendarassist lists a user's Google Calendar bookings through a hosted
tool gateway and answers questions about them with a language model.

It can run as:
  - An HTTP API server (serve)
  - A one-shot CLI that prints bookings (bookings)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal; a broken one is not.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	},
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calendarassist version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "calendarassist version %s\n", version)
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBookingsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
