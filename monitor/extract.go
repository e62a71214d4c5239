package monitor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func yearMarker(prefix string, year int) string {
	return fmt.Sprintf("%s%d", prefix, year)
}

// ExtractFilings pulls the filing rows out of the per-year tab table.
// A page without that table yields no rows.
func ExtractFilings(page []byte, tabPrefix string, year int) []Filing {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}
	table := doc.Find("#" + yearMarker(tabPrefix, year) + " > table")
	if table.Length() == 0 {
		return nil
	}
	var rows []Filing
	table.Find("tr[id]").Each(func(_ int, tr *goquery.Selection) {
		id := strings.TrimSpace(tr.AttrOr("id", ""))
		if id == "" {
			return
		}
		cell := tr.Find(`td[data-title="Description"]`).First()
		if cell.Length() == 0 {
			cell = tr.Find("td").Eq(1)
		}
		rows = append(rows, Filing{ID: id, Description: cleanText(cell.Text())})
	})
	return rows
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}
