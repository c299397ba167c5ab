package dbtools

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
)

// Format selects how Execute renders rows.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

// ParseFormat accepts json, csv and text in any case. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown result format %q", ErrInvalidRequest, s)
	}
}

// Render writes result in format.
func Render(result *QueryResult, format Format) (string, error) {
	switch format {
	case FormatCSV:
		return renderCSV(result)
	case FormatText:
		return renderText(result)
	case FormatJSON, "":
		b, err := json.Marshal(struct {
			*QueryResult
			RowCount int `json:"row_count"`
		}{result, result.RowCount()})
		if err != nil {
			return "", fmt.Errorf("failed to encode result: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("%w: unknown result format %q", ErrInvalidRequest, format)
	}
}

func renderCSV(result *QueryResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if len(result.Columns) > 0 {
		if err := w.Write(result.Columns); err != nil {
			return "", err
		}
	}
	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i, v := range row {
			record[i] = cell(v, "")
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// flatten keeps each text row on one line with its columns aligned.
var flatten = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

func renderText(result *QueryResult) (string, error) {
	var buf bytes.Buffer
	if len(result.Columns) > 0 {
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(result.Columns, "\t"))

		rule := make([]string, len(result.Columns))
		for i, c := range result.Columns {
			rule[i] = strings.Repeat("-", len(c))
		}
		fmt.Fprintln(tw, strings.Join(rule, "\t"))

		cells := make([]string, len(result.Columns))
		for _, row := range result.Rows {
			for i, v := range row {
				cells[i] = flatten.Replace(cell(v, "NULL"))
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return "", err
		}
	}

	fmt.Fprintf(&buf, "(%d rows", result.RowCount())
	if result.Truncated {
		buf.WriteString(", truncated")
	}
	buf.WriteString(")\n")
	return buf.String(), nil
}

func cell(v interface{}, null string) string {
	switch x := v.(type) {
	case nil:
		return null
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
