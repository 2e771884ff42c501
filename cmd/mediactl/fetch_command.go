package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jaki95/yt-media-server/internal/pipeline"
	"github.com/jaki95/yt-media-server/internal/progress"
	"github.com/k0kubun/go-ansi"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a video's audio into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			out := cmd.OutOrStdout()
			tracker := progress.NewTracker()

			var bar *progressbar.ProgressBar
			if isTerminal(out) {
				bar = newProgressBar()
				tracker.AddListener(func(e progress.Event) {
					if e.Stage == progress.StageError {
						return
					}
					bar.Describe(fmt.Sprintf("[cyan]%s[reset] %s", e.Stage, e.Message))
					bar.Set(int(e.Progress))
				})
			} else {
				tracker.AddListener(func(e progress.Event) {
					fmt.Fprintf(out, "[%3.0f%%] %s\n", e.Progress, e.Message)
				})
			}

			result, err := svc.Pipeline.Acquire(cmd.Context(), args[0], pipeline.WithProgress(tracker))
			if bar != nil {
				bar.Finish()
				fmt.Fprintln(out)
			}
			if err != nil {
				return err
			}

			title := tracker.Current().Title
			fmt.Fprintf(out, "Saved %q with %d chapters\n", title, len(result.Chapters))
			return nil
		},
	}
}

func newProgressBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(
		100,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetDescription("Starting..."),
	)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
