package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"termsense/internal/config"
	"termsense/internal/detect"
	"termsense/internal/notify"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a config file interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var assistants []config.AssistantInfo
			for _, def := range detect.DefaultRegistry().All() {
				assistants = append(assistants, config.AssistantInfo{ID: def.ID, Name: def.Name})
			}

			_, err := config.SetupWizard(config.SetupOptions{
				In:         os.Stdin,
				Out:        cmd.OutOrStdout(),
				Path:       opts.configPath,
				Assistants: assistants,
				TestWebhook: func(url string) error {
					return notify.TestWebhook(cmd.Context(), url, nil, 10*time.Second)
				},
			})
			return err
		},
	}
}
