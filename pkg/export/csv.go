package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/soundprediction/minerva/pkg/types"
)

// CSVHeader is the header row of the link table.
var CSVHeader = []string{"source", "target", "strength"}

// WriteCSV writes one tab-separated row per link under CSVHeader.
func WriteCSV(w io.Writer, links []types.Link) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, l := range links {
		if err := cw.Write([]string{l.Source, l.Target, strconv.Itoa(l.Value)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the links of doc to path.
func WriteCSVFile(path string, doc *types.GraphDocument) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteCSV(w, doc.Data.Links)
	})
}
