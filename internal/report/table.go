// Package report renders scan results and snapshots as terminal tables.
package report

import (
	"fmt"
	"io"
	"strings"

	"go-hiring-tracker/internal/diff"
	"go-hiring-tracker/internal/models"
	"go-hiring-tracker/internal/region"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newWriter(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// Results renders one summary row per result.
func Results(w io.Writer, results []diff.Result, regions region.Regions) {
	t := newWriter(w)

	header := table.Row{"Portal", "Category", "Current", "New", "Removed"}
	for _, name := range regions.Names() {
		header = append(header, name+" new")
	}
	header = append(header, "Attempts", "Flags")
	t.AppendHeader(header)

	var cur, added, removed int
	for _, res := range results {
		row := table.Row{res.Portal, res.Category, len(res.Current), len(res.New), removedCell(res)}
		for _, name := range regions.Names() {
			row = append(row, regions.Count(name, res.New))
		}
		row = append(row, res.Attempts, flags(res))
		t.AppendRow(row)

		cur += len(res.Current)
		added += len(res.New)
		removed += len(res.Removed)
	}

	footer := table.Row{"Total", "", cur, added, removed}
	for range regions.Names() {
		footer = append(footer, "")
	}
	t.AppendFooter(append(footer, "", ""))

	cols := []table.ColumnConfig{}
	for i := 3; i <= 5; i++ {
		cols = append(cols, table.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	t.SetColumnConfigs(cols)
	t.Render()
}

// Changes lists the new and removed listings of each result.
func Changes(w io.Writer, results []diff.Result) {
	for _, res := range results {
		if len(res.New) == 0 && len(res.Removed) == 0 {
			continue
		}
		t := newWriter(w)
		t.SetTitle(res.Key().String())
		t.AppendHeader(table.Row{"", "ID", "Title", "Location"})
		for _, j := range res.New {
			t.AppendRow(table.Row{"+", j.ID, j.Title, j.Location})
		}
		for _, j := range res.Removed {
			t.AppendRow(table.Row{"-", j.ID, j.Title, j.Location})
		}
		t.Render()
	}
}

// Snapshot renders a stored snapshot with region tags.
func Snapshot(w io.Writer, snap models.Snapshot, regions region.Regions) {
	t := newWriter(w)
	t.SetTitle(snapshotTitle(snap))
	t.AppendHeader(table.Row{"ID", "Title", "Location", "Department", "Regions"})
	for _, j := range snap.Jobs {
		t.AppendRow(table.Row{j.ID, j.Title, j.Location, j.Department, strings.Join(regions.Of(j.Location), ", ")})
	}
	t.Render()
}

func snapshotTitle(snap models.Snapshot) string {
	title := fmt.Sprintf("%s (%s, %d jobs)", snap.SnapshotKey, snap.Policy, len(snap.Jobs))
	if !snap.CommittedAt.IsZero() {
		title += " committed " + snap.CommittedAt.Format("2006-01-02 15:04 MST")
	}
	return title
}

func removedCell(res diff.Result) any {
	if !res.Policy.TracksRemovals() {
		return "-"
	}
	return len(res.Removed)
}

func flags(res diff.Result) string {
	var f []string
	if res.ColdStart {
		f = append(f, "first run")
	}
	if res.Degraded {
		f = append(f, "degraded")
	}
	if !res.Recorded {
		f = append(f, "not recorded")
	}
	return strings.Join(f, ", ")
}
