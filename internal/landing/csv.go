package landing

import (
	"fmt"
	"strings"

	"chaszcze-site/internal/models"
	"chaszcze-site/internal/util"
)

// BuildResultsCSV renders an event's results as the downloadable sheet shown on
// the public page. Places follow grid order.
func BuildResultsCSV(event models.Event, grid models.ResultsGrid) string {
	b := strings.Builder{}
	writeLine(&b, "Wydarzenie: "+event.Name)
	writeLine(&b, "Data: "+event.Date)
	writeLine(&b, "Lokalizacja: "+event.Location)
	b.WriteString("\n")

	for _, cat := range grid.Categories(event.Categories) {
		writeLine(&b, "Kategoria: "+cat)
		b.WriteString("Miejsce,Drużyna,Punkty karne\n")
		for i, r := range grid[cat] {
			line := fmt.Sprintf("%d,%s,%d\n", i+1, util.EscapeCSV(r.Team), r.PenaltyPoints)
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// writeLine writes a single-cell line.
func writeLine(b *strings.Builder, cell string) {
	b.WriteString(util.EscapeCSV(cell))
	b.WriteString("\n")
}

func CSVFilename(event models.Event) string {
	return fmt.Sprintf("wyniki_%s_%s.csv", util.Underscored(event.Name), event.Date)
}
