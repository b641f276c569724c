package export

import "fmt"

// Format identifies a document sink.
type Format string

const (
	FormatText  Format = "txt"
	FormatCSV   Format = "csv"
	FormatPDF   Format = "pdf"
	FormatXLSX  Format = "xlsx"
	FormatShare Format = "share"
)

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
	// Notes are free-text paragraphs rendered after the table.
	Notes []string
}

// Renderer turns a dataset into sink-specific bytes.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
}

// Options configures the sinks.
type Options struct {
	PDFFontPath  string
	RightToLeft  bool
	ShareBaseURL string
}

// Registry maps formats to renderers.
type Registry struct {
	renderers map[Format]Renderer
}

// NewRegistry wires every supported sink.
func NewRegistry(opts Options) *Registry {
	return &Registry{renderers: map[Format]Renderer{
		FormatText:  NewTextExporter(),
		FormatCSV:   NewCSVExporter(),
		FormatPDF:   NewPDFExporter(opts.PDFFontPath, opts.RightToLeft),
		FormatXLSX:  NewXLSXExporter(opts.RightToLeft),
		FormatShare: NewShareExporter(opts.ShareBaseURL),
	}}
}

// Render dispatches to the renderer registered for format.
func (r *Registry) Render(format Format, data Dataset) ([]byte, error) {
	renderer, ok := r.renderers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	return renderer.Render(data)
}

// Supports reports whether format has a registered sink.
func (r *Registry) Supports(format Format) bool {
	_, ok := r.renderers[format]
	return ok
}

// ContentType returns the MIME type for a format.
func ContentType(format Format) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain; charset=utf-8"
	}
}

func requireHeaders(kind string, data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", kind)
	}
	return nil
}
