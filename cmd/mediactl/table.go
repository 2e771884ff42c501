package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jaki95/yt-media-server/internal/domain"
)

// Long titles are trimmed so a catalog row fits one terminal line.
const maxTextWidth = 40

func newTableWriter() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

func textColumn(name string) table.ColumnConfig {
	return table.ColumnConfig{
		Name:             name,
		WidthMax:         maxTextWidth,
		WidthMaxEnforcer: text.Trim,
	}
}

func numberColumn(name string) table.ColumnConfig {
	return table.ColumnConfig{
		Name:        name,
		Align:       text.AlignRight,
		AlignHeader: text.AlignLeft,
		AlignFooter: text.AlignRight,
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// renderTracks lists the catalog with a cover marker per track.
func renderTracks(tracks []domain.TrackDescriptor) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"ID", "Title", "Artist", "Album", "Cover"})

	covers := 0
	for _, t := range tracks {
		cover := "no"
		if t.CoverArt != nil {
			cover = "yes"
			covers++
		}
		tw.AppendRow(table.Row{strconv.Itoa(t.ID), t.Title, t.Artist, t.Album, cover})
	}
	tw.AppendFooter(table.Row{"", plural(len(tracks), "track"), "", "", fmt.Sprintf("%d/%d", covers, len(tracks))})

	tw.SetColumnConfigs([]table.ColumnConfig{
		numberColumn("ID"),
		textColumn("Title"),
		textColumn("Artist"),
		textColumn("Album"),
	})
	return tw.Render()
}

// renderChapters lists chapter marks with their offsets.
func renderChapters(marks []domain.ChapterMark) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"#", "Start", "Title"})

	for i, m := range marks {
		tw.AppendRow(table.Row{strconv.Itoa(i + 1), formatOffset(m.StartTime), m.Title})
	}
	tw.AppendFooter(table.Row{"", "", plural(len(marks), "chapter")})

	tw.SetColumnConfigs([]table.ColumnConfig{
		numberColumn("#"),
		numberColumn("Start"),
		textColumn("Title"),
	})
	return tw.Render()
}
