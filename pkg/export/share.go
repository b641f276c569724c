package export

import "strings"

const defaultShareBaseURL = "https://wa.me/"

// ShareExporter produces a prefilled messaging share-intent URL. Delivery is
// not confirmed; the URL is opened by the client.
type ShareExporter struct {
	baseURL string
	text    *TextExporter
}

// NewShareExporter builds a share exporter against baseURL.
func NewShareExporter(baseURL string) *ShareExporter {
	if baseURL == "" {
		baseURL = defaultShareBaseURL
	}
	return &ShareExporter{baseURL: baseURL, text: NewTextExporter()}
}

// Render returns the share URL bytes for the text rendering of data.
func (e *ShareExporter) Render(data Dataset) ([]byte, error) {
	body, err := e.text.Render(data)
	if err != nil {
		return nil, err
	}
	return []byte(ShareURL(e.baseURL, string(body))), nil
}

// ShareURL puts text in the `text` query parameter, escaped exactly like
// JavaScript's encodeURIComponent: only A-Z a-z 0-9 and -_.!~*'() stay literal.
func ShareURL(baseURL, text string) string {
	return baseURL + "?text=" + encodeURIComponent(text)
}

func encodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if uriUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func uriUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
