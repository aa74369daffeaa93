// Package export renders result lists for download.
package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/david/gsa-finder/internal/models"
)

// Filename is the download name of a CSV export.
const Filename = "results.csv"

// ContentType of a CSV export.
const ContentType = "text/csv;charset=utf-8"

// Header is the fixed column order.
var Header = []string{
	"ID", "Title", "Agency", "NAICS", "SetAside", "Vehicle",
	"DueDate", "Status", "PercentComplete", "FitScore", "Ceiling",
}

// Row returns the cells of one record in Header order. Set-asides are
// joined with "|".
func Row(o models.Opportunity) []string {
	return []string{
		o.ID,
		o.Title,
		o.Agency,
		o.NAICS,
		strings.Join(o.SetAside, "|"),
		o.Vehicle,
		o.DueDate.String(),
		string(o.Status),
		strconv.Itoa(o.PercentComplete),
		formatNumber(o.FitScore),
		formatNumber(o.Ceiling),
	}
}

// WriteCSV writes the header and one line per record, in the given order.
// Every cell is quoted and embedded quotes are doubled. Lines are joined by
// "\n" with no trailing newline.
func WriteCSV(w io.Writer, opps []models.Opportunity) error {
	var b strings.Builder
	writeLine(&b, Header)
	for _, o := range opps {
		b.WriteByte('\n')
		writeLine(&b, Row(o))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// CSV is WriteCSV into a string.
func CSV(opps []models.Opportunity) string {
	var b strings.Builder
	_ = WriteCSV(&b, opps)
	return b.String()
}

func writeLine(b *strings.Builder, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(c, `"`, `""`))
		b.WriteByte('"')
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
