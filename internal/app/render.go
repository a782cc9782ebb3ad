package app

import (
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ohamelijnck/watchpdf/internal/config"
	"github.com/ohamelijnck/watchpdf/internal/journal"
)

var (
	okColor      = color.New(color.FgGreen)
	missingColor = color.New(color.FgRed)
)

func newTable(headers ...string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	return tw
}

// RenderFolders renders the watch list with an existence check per folder.
func RenderFolders(cfg *config.Config) string {
	tw := newTable("#", "Folder", "Status")
	for i, folder := range cfg.WatchFolderList {
		status := okColor.Sprint("ok")
		if info, err := os.Stat(folder); err != nil || !info.IsDir() {
			status = missingColor.Sprint("missing")
		}
		tw.AppendRow(table.Row{i + 1, folder, status})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// RenderSettings renders the non-folder settings of cfg.
func RenderSettings(cfg *config.Config) string {
	tw := newTable("Setting", "Value")
	tw.AppendRows([]table.Row{
		{"format", cfg.Format},
		{"recursive", strconv.FormatBool(cfg.Recursive)},
		{"heuristic_search", strconv.FormatBool(cfg.HeuristicSearch)},
		{"notifications", strconv.FormatBool(cfg.Notifications)},
		{"delay", cfg.Delay.String()},
	})
	for _, pat := range cfg.Exclude {
		tw.AppendRow(table.Row{"exclude", pat})
	}
	return tw.Render()
}

// RenderHistory renders journal entries, newest first as given.
func RenderHistory(entries []journal.Entry) string {
	tw := newTable("Time", "Folder", "Old name", "New name", "Source")
	for _, e := range entries {
		tw.AppendRow(table.Row{
			e.Time.Local().Format(time.DateTime),
			e.Dir,
			e.OldName,
			e.NewName,
			e.Source,
		})
	}
	return tw.Render()
}
