// Package ingestion reads and writes the job posting CSV exchanged between
// the scraper and the importer.
package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nursmen/neuralhire/internal/jobtext"
	"github.com/nursmen/neuralhire/internal/repository"
)

// Column names of the job CSV. "knoladge" and "addition" keep the spelling
// of existing exports.
const (
	ColTitle     = "title"
	ColMoney     = "money"
	ColKnowledge = "knoladge"
	ColCompany   = "company"
	ColAddition  = "addition"
	ColCity      = "city"
	ColLink      = "link"
)

// Columns is the header written by Writer.
var Columns = []string{ColTitle, ColMoney, ColKnowledge, ColCompany, ColAddition, ColCity, ColLink}

// maxFieldRunes bounds short text fields.
const maxFieldRunes = 255

// placeholder fills required fields that are missing. It is a sentinel and
// never reaches the composed text.
const placeholder = "Unknown"

// Row is one CSV record keyed by lowercase column name.
type Row map[string]string

// Get returns the trimmed value of col, or "" when absent.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// Job builds an unsaved job from the row.
func (r Row) Job() *repository.Job {
	return &repository.Job{
		Title:     orPlaceholder(truncate(r.text(ColTitle))),
		Knowledge: r.text(ColKnowledge),
		Salary:    ParseSalary(r.Get(ColMoney)),
		Company:   orPlaceholder(truncate(jobtext.CleanCompany(r.text(ColCompany)))),
		Additions: r.text(ColAddition),
		City:      orPlaceholder(truncate(r.text(ColCity))),
		Link:      r.Get(ColLink),
	}
}

// text returns the NFC-normalized value of col so tag substrings match
// regardless of how the source encoded combining characters.
func (r Row) text(col string) string {
	return norm.NFC.String(r.Get(col))
}

// ReadCSV reads every row of a job CSV. Missing columns read as empty.
func ReadCSV(in io.Reader) ([]Row, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv has no header")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		row := make(Row, len(header))
		for i, value := range record {
			if i < len(header) {
				row[header[i]] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Writer writes rows in Columns order.
type Writer struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewWriter creates a Writer on out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(out)}
}

// Write writes one row, preceded by the header on first use.
func (w *Writer) Write(r Row) error {
	if !w.wroteHeader {
		if err := w.w.Write(Columns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		w.wroteHeader = true
	}
	record := make([]string, len(Columns))
	for i, col := range Columns {
		record[i] = r[col]
	}
	if err := w.w.Write(record); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

func truncate(s string) string {
	if r := []rune(s); len(r) > maxFieldRunes {
		return string(r[:maxFieldRunes])
	}
	return s
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
