package export

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
)

// TextExporter renders datasets as plain text suitable for file download or
// pasting into a message.
type TextExporter struct{}

// NewTextExporter builds a text exporter.
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// Render writes the title, one block per row and any notes.
func (e *TextExporter) Render(data Dataset) ([]byte, error) {
	if err := requireHeaders("text", data); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	if data.Title != "" {
		fmt.Fprintf(buf, "%s\n%s\n", data.Title, strings.Repeat("=", len([]rune(data.Title))))
	}

	w := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
	for i, row := range data.Rows {
		if i > 0 {
			fmt.Fprintln(w)
		}
		for _, header := range data.Headers {
			value := row[header]
			if value == "" {
				continue
			}
			fmt.Fprintf(w, "%s:\t%s\n", header, value)
		}
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush text: %w", err)
	}

	for _, note := range data.Notes {
		if strings.TrimSpace(note) == "" {
			continue
		}
		fmt.Fprintf(buf, "\n%s\n", note)
	}
	return buf.Bytes(), nil
}
