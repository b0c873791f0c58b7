package output

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// TableStyle defines the style for table output.
type TableStyle struct {
	Border      lipgloss.Border
	BorderColor lipgloss.Color
	HeaderStyle lipgloss.Style
	CellStyle   lipgloss.Style
}

// DefaultTableStyle returns the default table style.
func DefaultTableStyle() TableStyle {
	return TableStyle{
		Border:      lipgloss.NormalBorder(),
		BorderColor: ColorDimGray,
		HeaderStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		CellStyle:   lipgloss.NewStyle(),
	}
}

// Table is a styled table.
type Table struct {
	headers []string
	rows    [][]string
	style   TableStyle
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{
		headers: headers,
		style:   DefaultTableStyle(),
	}
}

// Row adds a row to the table.
func (t *Table) Row(cells ...string) *Table {
	t.rows = append(t.rows, cells)
	return t
}

// String renders the table.
func (t *Table) String() string {
	tbl := table.New().
		Border(t.style.Border).
		BorderStyle(lipgloss.NewStyle().Foreground(t.style.BorderColor)).
		Headers(t.headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return t.style.HeaderStyle
			}
			return t.style.CellStyle
		})
	for _, row := range t.rows {
		tbl.Row(row...)
	}
	return tbl.String()
}

// ModuleRow is one line of the module table.
type ModuleRow struct {
	Identifier string
	Format     string
	Status     string
	Exports    []string
	Deps       int
}

// RenderModuleTable renders modules as a table.
func RenderModuleTable(rows []ModuleRow) string {
	t := NewTable("MODULE", "FORMAT", "STATUS", "DEPS", "EXPORTS")
	for _, r := range rows {
		t.Row(r.Identifier, r.Format, statusStyle(r.Status).Render(r.Status), strconv.Itoa(r.Deps), strings.Join(r.Exports, ", "))
	}
	return t.String()
}
