package main

import (
	"fmt"
	"time"

	"github.com/jaki95/yt-media-server/internal/chapters"
	"github.com/jaki95/yt-media-server/internal/domain"
	"github.com/spf13/cobra"
)

func newChaptersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "chapters <title>",
		Short: "Show the chapters stored for a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store := chapters.NewStore(cfg.Storage.DataDir)
			name := domain.SanitizeTitle(args[0])
			out := cmd.OutOrStdout()

			if !store.Exists(name) {
				fmt.Fprintf(out, "No chapters stored for %q, using default\n", name)
			}

			fmt.Fprintln(out, renderChapters(store.Read(name)))
			return nil
		},
	}
}

// formatOffset renders seconds as h:mm:ss or m:ss.
func formatOffset(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
