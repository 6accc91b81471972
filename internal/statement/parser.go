package statement

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Fixed column positions in the documented layout. Extra columns are
// ignored.
const (
	colDate       = 0
	colDescriptor = 1
	colAmount     = 2
	minColumns    = 3
)

// Row is one validated, normalized statement line.
type Row struct {
	Date          time.Time
	RawDescriptor string
	Descriptor    string
	Amount        decimal.Decimal
}

// LineError is a parse failure scoped to one line and column.
type LineError struct {
	Err    error
	Column string
	Line   int
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: column %s: %v", e.Line, e.Column, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ParseErrors aggregates every failing line of a rejected file.
type ParseErrors []*LineError

func (e ParseErrors) Error() string {
	msgs := make([]string, len(e))
	for i, le := range e {
		msgs[i] = le.Error()
	}
	return fmt.Sprintf("%d line(s) failed to parse: %s", len(e), strings.Join(msgs, "; "))
}

// Parser reads the delimited statement layout.
type Parser struct {
	Delimiter  rune
	SkipHeader bool
}

// NewParser returns a Parser with the documented export defaults:
// semicolon-delimited, first line is a header.
func NewParser() *Parser {
	return &Parser{Delimiter: ';', SkipHeader: true}
}

// Parse reads every line of the file. A file containing any malformed
// line is rejected in full: the returned ParseErrors carries one entry
// per failing column so callers can report everything at once, and no
// rows are returned.
func (p *Parser) Parse(data []byte) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = p.Delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var rows []Row
	var errs ParseErrors

	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, &LineError{Line: line, Column: "record", Err: err})
			continue
		}
		if p.SkipHeader && line == 1 {
			continue
		}

		row, rowErrs := p.parseRecord(line, record)
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}
		rows = append(rows, row)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return rows, nil
}

// parseRecord validates and normalizes one line, reporting every failing
// column rather than stopping at the first.
func (p *Parser) parseRecord(line int, record []string) (Row, []*LineError) {
	var errs []*LineError

	if len(record) < minColumns {
		return Row{}, []*LineError{{
			Line:   line,
			Column: "record",
			Err:    fmt.Errorf("expected at least %d columns, got %d", minColumns, len(record)),
		}}
	}

	var row Row

	if blank(record[colDate]) {
		errs = append(errs, &LineError{Line: line, Column: "date", Err: ErrBlankColumn})
	} else if date, err := ParseDate(record[colDate]); err != nil {
		errs = append(errs, &LineError{Line: line, Column: "date", Err: err})
	} else {
		row.Date = date
	}

	if blank(record[colDescriptor]) {
		errs = append(errs, &LineError{Line: line, Column: "descriptor", Err: ErrBlankColumn})
	} else if descriptor, err := NormalizeDescriptor(record[colDescriptor]); err != nil {
		errs = append(errs, &LineError{Line: line, Column: "descriptor", Err: err})
	} else {
		row.RawDescriptor = record[colDescriptor]
		row.Descriptor = descriptor
	}

	if blank(record[colAmount]) {
		errs = append(errs, &LineError{Line: line, Column: "amount", Err: ErrBlankColumn})
	} else if amount, err := ParseAmount(record[colAmount]); err != nil {
		errs = append(errs, &LineError{Line: line, Column: "amount", Err: err})
	} else {
		row.Amount = amount
	}

	if len(errs) > 0 {
		return Row{}, errs
	}
	return row, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IsParseError reports whether err originated from statement parsing, as
// opposed to a persistence failure.
func IsParseError(err error) bool {
	var parseErrs ParseErrors
	return errors.As(err, &parseErrs)
}
