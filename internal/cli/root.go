package cli

import (
	"github.com/spf13/cobra"
)

// Version is reported by --version
var Version = "dev"

type Dependencies struct {
	// NewClient builds the API client once flags are parsed
	NewClient func(server string) *Client
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps.NewClient == nil {
		deps.NewClient = NewClient
	}

	var server string
	rootCmd := &cobra.Command{
		Use:           "classctl",
		Short:         "Control the class recording daemon",
		Long:          "classctl starts and stops recordings, submits files for transcription and inspects the weekly schedule of a running class-transcribe server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&server, "server", DefaultServer, "Base URL of the class-transcribe server")

	client := func() *Client { return deps.NewClient(server) }

	rootCmd.AddCommand(NewStatusCmd(client))
	rootCmd.AddCommand(NewRecordCmd(client))
	rootCmd.AddCommand(NewStopCmd(client))
	rootCmd.AddCommand(NewTranscribeCmd(client))
	rootCmd.AddCommand(NewJobsCmd(client))
	rootCmd.AddCommand(NewCancelCmd(client))
	rootCmd.AddCommand(NewScheduleCmd(client))
	rootCmd.AddCommand(NewPlanCmd())

	return rootCmd
}
