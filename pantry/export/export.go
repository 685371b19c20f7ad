// pantry/export/export.go
package export

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrNoData        = errors.New("export: no data to export")
	ErrEmptyHeaders  = errors.New("export: headers cannot be empty")
	ErrUnknownFormat = errors.New("export: unknown format")
)

// Formats lists the formats Save understands.
var Formats = []string{"csv", "xlsx"}

// Table is a header row plus string cells, the common input of every
// exporter in this package.
type Table struct {
	Headers []string
	Rows    [][]string
}

func (t Table) check() error {
	if len(t.Headers) == 0 {
		return ErrEmptyHeaders
	}
	if len(t.Rows) == 0 {
		return ErrNoData
	}
	return nil
}

// Save writes t to filename in the given format ("csv" or "xlsx").
// sheet names the worksheet for xlsx and is ignored for csv.
func Save(format, filename, sheet string, t Table) error {
	if err := t.check(); err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "csv":
		return NewCSV().Headers(t.Headers...).Rows(t.Rows).Save(filename)
	case "xlsx":
		x := NewExcel()
		defer x.Close()
		x.Sheet(sheet).Headers(t.Headers...).Rows(t.Rows).AutoWidth().FreezeHeader()
		return x.Save(filename)
	default:
		return fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
}
