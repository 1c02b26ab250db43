package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aura-capture/backend/pkg/client"
)

const (
	pathDirect  = "direct"
	pathHolding = "holding"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var title string
	var path string
	var contentType string
	var wait bool

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Create a recording and upload FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			path = strings.ToLower(strings.TrimSpace(path))
			if path != pathDirect && path != pathHolding {
				return fmt.Errorf("--path must be %s or %s", pathDirect, pathHolding)
			}
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(file))
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat recording: %w", err)
			}

			c := ctx.client()
			out := cmd.OutOrStdout()
			created, err := c.CreateRecording(cmd.Context(), title, 0)
			if err != nil {
				return err
			}
			id := created.Recording.ID
			fmt.Fprintf(out, "Recording %s created\nShare link: %s\n", id, c.ShareURL(created))

			var res *client.Transferred
			switch path {
			case pathDirect:
				res, err = c.UploadDirect(cmd.Context(), id, f, contentType)
			case pathHolding:
				var u *client.UploadURL
				if u, err = c.RequestUploadURL(cmd.Context(), id, contentType); err != nil {
					return err
				}
				if err = c.PutHolding(cmd.Context(), u, f, info.Size()); err != nil {
					return err
				}
				fmt.Fprintf(out, "Uploaded %d bytes to holding area\n", info.Size())
				res, err = c.Trigger(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Transferred %d bytes to %s\n", res.FileSize, res.FinalFileRef)

			if !wait {
				return nil
			}
			st, err := c.WaitForTerminal(cmd.Context(), id)
			if err != nil {
				if errors.Is(err, client.ErrPollTimeout) {
					return fmt.Errorf("recording %s: %w", id, err)
				}
				return err
			}
			fmt.Fprintf(out, "Status: %s\n", st.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Recording title (defaults to the file name)")
	cmd.Flags().StringVar(&path, "path", pathDirect, "Upload path: direct (through the API) or holding (signed URL, then transfer)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Payload content type (defaults from the file extension)")
	cmd.Flags().BoolVar(&wait, "wait", true, "Poll until the recording is ready or failed")

	return cmd
}
