package main

import (
	"fmt"

	"github.com/jaki95/yt-media-server/internal/storage"
	"github.com/spf13/cobra"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the audio catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			out := cmd.OutOrStdout()

			if remote {
				names, err := svc.Storage.List(cmd.Context(), storage.AudioPrefix)
				if err != nil {
					return err
				}
				if len(names) == 0 {
					fmt.Fprintln(out, "No published audio")
					return nil
				}
				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			tracks := svc.Catalog.Build(cmd.Context())
			if len(tracks) == 0 {
				fmt.Fprintln(out, "No audio files found")
				return nil
			}

			fmt.Fprintln(out, renderTracks(tracks))
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "List audio published to the storage backend instead")
	return cmd
}
