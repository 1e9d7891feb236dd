package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// postColumnWidth wraps long LinkedIn posts inside the table.
const postColumnWidth = 72

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatReport renders a report as a table.
func (f *TableFormatter) FormatReport(report *Report) (string, error) {
	if report == nil || report.Result == nil {
		return "", nil
	}
	r := report.Result

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: postColumnWidth, WidthMaxEnforcer: text.WrapSoft},
	})

	t.AppendRow(table.Row{"Platform", r.Platform.DisplayName()})
	t.AppendRow(table.Row{"Topic", report.Topic})
	t.AppendRow(table.Row{"Status", statusLabel(r)})
	if r.Success {
		t.AppendRow(table.Row{"Post", r.Post()})
	} else {
		t.AppendRow(table.Row{"Error", r.Message()})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Time", seconds(r)})

	return t.Render(), nil
}
