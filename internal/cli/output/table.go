package output

import (
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// Tabular is implemented by results with a natural table layout.
type Tabular interface {
	Table() *Table
}

// TableFormatter formats data as an aligned table.
type TableFormatter struct {
	NoHeaders bool
}

// Format renders data. Supported shapes are *Table, Tabular, []string
// (one column) and map[string]any (KEY/VALUE sorted by key). Anything else
// is printed as compact JSON.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	var t *Table
	switch v := data.(type) {
	case nil:
		return nil
	case *Table:
		t = v
	case Tabular:
		t = v.Table()
	case []string:
		t = &Table{Headers: []string{"KEY"}}
		for _, s := range v {
			t.AddRow(s)
		}
	case map[string]any:
		t = &Table{Headers: []string{"KEY", "VALUE"}}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.AddRow(k, Compact(v[k]))
		}
	default:
		_, err := io.WriteString(w, Compact(data)+"\n")
		return err
	}
	return t.RenderWithOptions(w, f.NoHeaders)
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table, optionally without headers. Empty
// cells are shown as "-".
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		if _, err := io.WriteString(tw, strings.Join(t.Headers, "\t")+"\n"); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			if c == "" {
				c = "-"
			}
			cells[i] = c
		}
		if _, err := io.WriteString(tw, strings.Join(cells, "\t")+"\n"); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}
