// pantry/export/csv.go
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSV is a builder-style CSV exporter.
type CSV struct {
	headers   []string
	rows      [][]string
	delimiter rune
	useCRLF   bool
}

// NewCSV creates a new CSV exporter (comma, CRLF).
func NewCSV() *CSV {
	return &CSV{
		delimiter: ',',
		useCRLF:   true,
	}
}

// Delimiter sets the field delimiter (default: comma).
func (c *CSV) Delimiter(d rune) *CSV {
	c.delimiter = d
	return c
}

// UseLF uses LF line endings instead of CRLF.
func (c *CSV) UseLF() *CSV {
	c.useCRLF = false
	return c
}

// Headers sets the column headers.
func (c *CSV) Headers(headers ...string) *CSV {
	c.headers = headers
	return c
}

// Rows adds rows.
func (c *CSV) Rows(rows [][]string) *CSV {
	c.rows = append(c.rows, rows...)
	return c
}

// Bytes returns the CSV as bytes.
func (c *CSV) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes the CSV to w.
func (c *CSV) Write(w io.Writer) error {
	if len(c.headers) == 0 && len(c.rows) == 0 {
		return ErrNoData
	}

	cw := csv.NewWriter(w)
	cw.Comma = c.delimiter
	cw.UseCRLF = c.useCRLF

	if len(c.headers) > 0 {
		if err := cw.Write(c.headers); err != nil {
			return fmt.Errorf("write headers: %w", err)
		}
	}
	if err := cw.WriteAll(c.rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Save writes the CSV to filename.
func (c *CSV) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := c.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV reads every record from r, for callers that check an export.
func ReadCSV(r io.Reader) ([][]string, error) {
	return csv.NewReader(r).ReadAll()
}
