package common

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/vivbliss/catalogcrawl/internal/domain"
)

const percentMultiplier = 100

// RenderProgress writes a per-directory progress table.
func RenderProgress(w io.Writer, report []domain.DirectoryProgress) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Directory", "Level", "Status", "Products", "Completed", "Failed", "Progress"})
	for _, dir := range report {
		t.AppendRow(table.Row{
			dir.Path,
			dir.Level,
			dir.Status,
			dir.ProductsTotal,
			dir.ProductsCompleted,
			dir.ProductsFailed,
			fmt.Sprintf("%.1f%%", dir.CompletionRate*percentMultiplier),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Products", Align: text.AlignRight},
		{Name: "Completed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Progress", Align: text.AlignRight},
	})

	t.Render()
}

// RenderCategoryCounts writes a table of persisted categories with their
// stored product counts.
func RenderCategoryCounts(w io.Writer, categories []domain.CategoryRecord, counts map[string]int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Category", "Level", "Name", "Stored Products"})
	for _, cat := range categories {
		t.AppendRow(table.Row{cat.Path, cat.Level, cat.Name, counts[cat.Path]})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Stored Products", Align: text.AlignRight},
	})

	t.Render()
}
