package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rflorenc/awxctl/internal/platform"
)

// Output renders command results. Data goes to stdout, messages to
// stderr, so pipelines can consume the data stream alone.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput creates an Output. With jsonMode, data is emitted as JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{jsonMode: jsonMode, w: os.Stdout, errW: os.Stderr}
}

// Records renders a record listing: a table of the named columns, or
// the raw records as JSON.
func (o *Output) Records(columns []string, records []platform.Record) {
	if o.jsonMode {
		o.JSON(records)
		return
	}
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = strings.ToUpper(c)
	}
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(columns))
		for j, c := range columns {
			row[j] = cell(rec[c])
		}
		rows[i] = row
	}
	o.Table(headers, rows)
}

// Record renders a single record: key/value lines, or JSON.
func (o *Output) Record(rec platform.Record) {
	if o.jsonMode {
		o.JSON(rec)
		return
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		if strings.HasPrefix(k, "summary_fields") || strings.HasPrefix(k, "related") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", k, cell(rec[k]))
	}
	tw.Flush()
}

// Table renders rows under underlined headers through tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// Result emits a terminal data value on stdout: v as JSON in JSON
// mode, the plain line otherwise.
func (o *Output) Result(v interface{}, line string) {
	if o.jsonMode {
		o.JSON(v)
		return
	}
	fmt.Fprintln(o.w, line)
}

// JSON renders v indented to stdout.
func (o *Output) JSON(v interface{}) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Message prints a status line to stderr.
func (o *Output) Message(format string, args ...interface{}) {
	fmt.Fprintf(o.errW, format+"\n", args...)
}

// cell formats one record value for table display. JSON numbers arrive
// as float64; integral ones are shown without the decimal point.
func cell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
