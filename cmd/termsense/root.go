package main

import (
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	verbose    bool
	events     bool
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "termsense",
		Short: "Classify live terminal output",
		Long: `termsense watches terminal output and reports the working directory, the kind of
activity on screen and the state of any AI coding assistant running in it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default ~/.termsense/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.events, "events", false, "Print engine events")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	cmd.AddCommand(
		newWrapCmd(opts),
		newFollowCmd(opts),
		newCheckCmd(opts),
		newSchemaCmd(),
		newInitCmd(opts),
		newLogsCmd(opts),
		newVersionCmd(),
	)
	return cmd
}
