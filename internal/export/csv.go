package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var csvHeader = []string{"Filename", "Title", "Description", "Category", "Keywords"}

// WriteCSV writes the metadata manifest for the given items. Keywords are
// semicolon joined inside their single column, escaping follows standard
// CSV quoting.
func WriteCSV(w io.Writer, items []Item, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("could not write CSV header: %w", err)
	}
	for _, item := range items {
		row := []string{
			Filename(item.OriginalName, item.Title, item.Category, opts.KeepOriginalNames),
			item.Title,
			item.Description,
			item.Category,
			strings.Join(item.Keywords, ";"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("could not write CSV row for %s: %w", item.OriginalName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
