package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aura-capture/backend/internal/models"
	"github.com/aura-capture/backend/pkg/client"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change global settings",
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.client().Settings(cmd.Context())
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), s)
			return nil
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set-folder FOLDER",
		Short: "Set the destination folder new recordings are uploaded to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := args[0]
			s, err := ctx.client().UpdateSettings(cmd.Context(), client.SettingsUpdate{DestinationFolderRef: &folder})
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), s)
			return nil
		},
	})

	return settingsCmd
}

func printSettings(out io.Writer, s *models.Settings) {
	folder := s.DestinationFolderRef
	if folder == "" {
		folder = "(not set)"
	}
	fmt.Fprintf(out, "Destination folder: %s\n", folder)
	fmt.Fprintf(out, "Default quality:    %s\n", s.DefaultQuality)
	fmt.Fprintf(out, "Microphone:         %t\n", s.DefaultMicEnabled)
	fmt.Fprintf(out, "Webcam:             %t\n", s.DefaultWebcamEnabled)
}
