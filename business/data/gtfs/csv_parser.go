package gtfs

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// csvFileParser reads a gtfs csv file line by line, resolving columns by header name.
// Errors while extracting data types are accumulated with the line number they happened on.
type csvFileParser struct {
	filename      string
	line          int
	csvReader     *csv.Reader
	headers       []string
	currentRecord []string
	errors        []error
}

// makeCSVFileParser creates a csvFileParser from an io.Reader, consuming the header line
func makeCSVFileParser(r io.Reader, filename string) (*csvFileParser, error) {
	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read header in %s: %w", filename, err)
	}
	removeBOMIfPresent(headers)

	return &csvFileParser{
		filename:      filename,
		line:          1,
		csvReader:     csvReader,
		headers:       headers,
		currentRecord: headers,
	}, nil
}

func removeBOMIfPresent(headers []string) {
	if len(headers) < 1 || len(headers[0]) < 1 {
		return
	}
	runes := []rune(headers[0])
	if runes[0] == '\uFEFF' {
		headers[0] = string(runes[1:])
	}
}

// nextLine moves the reader one line forward. returns io.EOF at end of file
func (p *csvFileParser) nextLine() error {
	var err error
	p.currentRecord, err = p.csvReader.Read()
	p.line++
	return err
}

// getString retrieves a string column from the current line.
// returns empty string if the column is missing and optional
func (p *csvFileParser) getString(name string, optional bool) string {
	value, err := p.findValue(name, optional)
	if err != nil {
		p.errors = append(p.errors, err)
	}
	if value == nil {
		return ""
	}
	return *value
}

// getInt retrieves an int column from the current line.
// returns nil if missing and optional
func (p *csvFileParser) getInt(name string, optional bool) *int {
	value, err := p.findValue(name, optional)
	if err != nil {
		p.errors = append(p.errors, err)
		return nil
	}
	if value == nil {
		return nil
	}
	result, err := strconv.Atoi(*value)
	if err != nil {
		p.errors = append(p.errors, fmt.Errorf("column %s: %w", name, err))
		return nil
	}
	return &result
}

// getFloat64 retrieves a float64 column from the current line.
// returns nil if missing and optional
func (p *csvFileParser) getFloat64(name string, optional bool) *float64 {
	value, err := p.findValue(name, optional)
	if err != nil {
		p.errors = append(p.errors, err)
		return nil
	}
	if value == nil {
		return nil
	}
	result, err := strconv.ParseFloat(*value, 64)
	if err != nil {
		p.errors = append(p.errors, fmt.Errorf("column %s: %w", name, err))
		return nil
	}
	return &result
}

// findValue retrieves the raw string for a column on the current line.
// returns nil if the column isn't present or is empty and optional is true
func (p *csvFileParser) findValue(name string, optional bool) (*string, error) {
	index := indexOf(name, p.headers)
	if index < 0 {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to find header: %s", name)
	}
	if len(p.currentRecord) <= index {
		return nil, fmt.Errorf("record too short to find column %v named %s", index, name)
	}
	value := p.currentRecord[index]
	if len(value) == 0 {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("missing required value in column %s", name)
	}
	return &value, nil
}

// getError retrieves the accumulated errors encountered while parsing, nil if none
func (p *csvFileParser) getError() error {
	if len(p.errors) > 0 {
		return fmt.Errorf("in file %v, line %v: %v", p.filename, p.line, p.errors)
	}
	return nil
}

// clearErrors discards accumulated errors, used when a bad line is skipped rather than fatal
func (p *csvFileParser) clearErrors() {
	p.errors = nil
}

// indexOf finds the index of the element matching name. returns -1 if not found
func indexOf(name string, elements []string) int {
	for i, value := range elements {
		if name == value {
			return i
		}
	}
	return -1
}
