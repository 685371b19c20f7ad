// logging/console.go
package logging

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Console narrates a run for a human reader, in Indonesian, on stdout.
// It is not a log: no levels, no timestamps, not machine-parsable.
// Diagnostics belong on the zap logger.
type Console struct {
	out     io.Writer
	errOut  io.Writer
	p       *message.Printer
	started bool
}

// NewConsole returns a Console writing narration to out and failures to
// errOut. Nil writers default to stdout/stderr.
func NewConsole(out, errOut io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Console{
		out:    out,
		errOut: errOut,
		p:      message.NewPrinter(language.Indonesian),
	}
}

// Out exposes the narration writer.
func (c *Console) Out() io.Writer { return c.out }

// Header prints a section header, separated from the previous section by
// a blank line:
//
//	--- Menjalankan operasi Create ---
func (c *Console) Header(title string) {
	if c.started {
		fmt.Fprintln(c.out)
	}
	c.started = true
	fmt.Fprintf(c.out, "--- %s ---\n", title)
}

// Banner prints a louder header, used between lesson parts.
func (c *Console) Banner(title string) {
	c.started = true
	fmt.Fprintf(c.out, "\n========== %s ==========\n", strings.ToUpper(title))
}

// Line prints its operands like fmt.Println.
func (c *Console) Line(a ...any) {
	c.started = true
	fmt.Fprintln(c.out, a...)
}

// Linef prints a formatted line. Numbers use Indonesian grouping
// (1.234.567).
func (c *Console) Linef(format string, args ...any) {
	c.started = true
	c.p.Fprintf(c.out, format+"\n", args...)
}

// Sprintf formats like Linef without printing.
func (c *Console) Sprintf(format string, args ...any) string {
	return c.p.Sprintf(format, args...)
}

// Failure reports a swallowed or fatal error on the error writer.
func (c *Console) Failure(what string, err error) {
	fmt.Fprintf(c.errOut, "%s: %v\n", what, err)
}

// JSON prints label followed by v as relaxed Extended JSON, the way the
// mongo shell's printjson does. Slices print as arrays; a nil value or nil
// pointer prints as null.
func (c *Console) JSON(label string, v any) {
	c.started = true
	s, err := ExtJSON(v)
	if err != nil {
		s = fmt.Sprintf("%+v", v)
	}
	if label == "" {
		fmt.Fprintln(c.out, s)
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", label, s)
}

// Rupiah formats an amount as whole Rupiah with Indonesian grouping,
// e.g. Rp8.500.000.
func (c *Console) Rupiah(amount float64) string {
	return c.p.Sprintf("Rp%d", int64(math.Round(amount)))
}

// Number formats n with Indonesian grouping and up to two decimals.
func (c *Console) Number(n float64) string {
	if n == math.Trunc(n) {
		return c.p.Sprintf("%d", int64(n))
	}
	return c.p.Sprintf("%.2f", n)
}

// ExtJSON renders v as indented relaxed Extended JSON.
func ExtJSON(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "null", nil
	}
	if !isArray(v, rv) {
		b, err := bson.MarshalExtJSONIndent(v, false, false, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if rv.Len() == 0 {
		return "[]", nil
	}

	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i := 0; i < rv.Len(); i++ {
		b, err := bson.MarshalExtJSONIndent(rv.Index(i).Interface(), false, false, "  ", "  ")
		if err != nil {
			return "", err
		}
		buf.WriteString("  ")
		buf.Write(b)
		if i < rv.Len()-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("]")
	return buf.String(), nil
}

// isArray reports whether v renders as a JSON array. bson.D and bson.Raw
// are slices in Go but documents on the wire.
func isArray(v any, rv reflect.Value) bool {
	switch v.(type) {
	case bson.D, bson.Raw:
		return false
	}
	return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
}
