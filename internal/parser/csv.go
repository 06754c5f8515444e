package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/coursemd/internal/document"
)

// CSVParser handles CSV files. The whole file becomes one pipe table with
// the first record as header, so it passes through classification as is.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var b textBuilder
	b.table(records)
	return &document.Document{
		Title: titleFromFilename(filename),
		Text:  b.String(),
	}, nil
}
