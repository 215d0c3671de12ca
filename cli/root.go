package cli

import (
	"github.com/spf13/cobra"

	"taskboard/client"
	"taskboard/config"
	"taskboard/tui"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "taskboard",
	Short: "Shared todo lists in the terminal",
	Long: `taskboard is a shared todo list: public todos are visible to
everyone, private ones only to their author, and every change shows up
live on all connected clients.

Run without arguments to open the interactive list against a server,
or run "taskboard serve" to host one.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(client.New(serverURL))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", config.Get().ServerURL, "server address")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the command line interface.
func Execute() error {
	return rootCmd.Execute()
}
