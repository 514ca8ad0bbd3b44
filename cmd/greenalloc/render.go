package main

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/okian/greenalloc/internal/domain/types"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// newTable builds a table whose first column is left aligned text and the
// rest are right aligned numbers.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col <= 1:
				return cellStyle
			default:
				return numberStyle
			}
		})
}

func formatFloat(v float64, digits int) string {
	return strconv.FormatFloat(v, 'f', digits, 64)
}

func renderRanking(w io.Writer, ranked []types.RankedProject) error {
	t := newTable("#", "Project", "ESG", "Return %", "Risk", "CO2 t", "Score", "Value")
	for _, r := range ranked {
		t.Row(
			strconv.Itoa(r.Rank),
			r.Name,
			formatFloat(r.ESGScore, 1),
			formatFloat(r.EstimatedReturn, 2),
			formatFloat(r.RiskLevel, 0),
			formatFloat(r.CarbonReduction, 0),
			formatFloat(r.Score, 1),
			formatFloat(r.Value, 2),
		)
	}
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
