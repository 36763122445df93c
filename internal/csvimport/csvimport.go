// Package csvimport turns uploaded CSV question banks into validated
// domain.Question lists, and exports game results back out as CSV.
package csvimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"brainplay/internal/domain"
	"github.com/google/uuid"
)

// Row is one CSV data row keyed by header column name.
type Row map[string]string

// requiredColumns must all be present in the header row.
var requiredColumns = []string{
	"Question",
	"Option A",
	"Option B",
	"Option C",
	"Option D",
	"Correct Answer",
}

// Result accumulates validation errors; Valid is false when any were found.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Parse reads a comma-delimited CSV with a header row into Rows. Quoting
// beyond basic comma splitting is not part of the input contract, but
// encoding/csv handles it transparently when present.
func Parse(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Validate checks rows against the upload contract. Errors are accumulated,
// not exclusive: a single row can emit more than one message, and rows are
// 1-indexed in messages.
func Validate(rows []Row) Result {
	var errs []string

	if len(rows) == 0 {
		return Result{Valid: false, Errors: []string{"CSV file is empty"}}
	}

	first := rows[0]
	for _, col := range requiredColumns {
		if _, ok := first[col]; !ok {
			errs = append(errs, fmt.Sprintf("Missing required column: %s", col))
		}
	}

	for i, row := range rows {
		if strings.TrimSpace(row["Question"]) == "" {
			errs = append(errs, fmt.Sprintf("Row %d: Question is empty", i+1))
		}
		// case-folded but not trimmed: " A " is not a valid answer letter
		answer := strings.ToUpper(row["Correct Answer"])
		if !domain.Answer(answer).Valid() {
			errs = append(errs, fmt.Sprintf("Row %d: Correct Answer must be A, B, C, or D", i+1))
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ConvertRows maps validated rows 1:1 onto questions. IDs combine the row
// index with a UUID fragment so any practical batch is collision-free.
// Calling this on rows that failed Validate is undefined behavior.
func ConvertRows(rows []Row) []domain.Question {
	questions := make([]domain.Question, len(rows))
	for i, row := range rows {
		questions[i] = domain.Question{
			ID:            fmt.Sprintf("q_%d_%s", i, uuid.NewString()[:8]),
			Text:          row["Question"],
			OptionA:       row["Option A"],
			OptionB:       row["Option B"],
			OptionC:       row["Option C"],
			OptionD:       row["Option D"],
			CorrectAnswer: domain.Answer(strings.ToUpper(row["Correct Answer"])),
		}
	}
	return questions
}
