package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth    = 210.0
	pdfPageHeight   = 297.0
	pdfMargin       = 10.0
	pdfBorderInset  = 5.0
	pdfContentWidth = pdfPageWidth - 2*pdfMargin
	pdfFontFamily   = "report"
)

// PDFExporter renders datasets into a bordered tabular PDF. With a UTF-8 font
// configured the document embeds it and lays out right-to-left.
type PDFExporter struct {
	fontPath    string
	rightToLeft bool
}

// NewPDFExporter constructs a PDF exporter. fontPath points at a TTF able to
// render Arabic; when empty the core Arial font is used left-to-right.
func NewPDFExporter(fontPath string, rightToLeft bool) *PDFExporter {
	return &PDFExporter{fontPath: fontPath, rightToLeft: rightToLeft}
}

// Render creates a PDF document with an optional title, a table body and notes.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := requireHeaders("pdf", data); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, 15, pdfMargin)
	pdf.SetAutoPageBreak(true, 15)

	family := "Arial"
	if e.fontPath != "" {
		pdf.AddUTF8Font(pdfFontFamily, "", e.fontPath)
		pdf.AddUTF8Font(pdfFontFamily, "B", e.fontPath)
		if pdf.Err() {
			return nil, fmt.Errorf("load pdf font: %w", pdf.Error())
		}
		family = pdfFontFamily
		if e.rightToLeft {
			pdf.RTL()
		}
	}

	pdf.SetHeaderFunc(func() {
		pdf.SetDrawColor(40, 145, 108)
		pdf.SetLineWidth(0.5)
		pdf.Rect(pdfBorderInset, pdfBorderInset, pdfPageWidth-2*pdfBorderInset, pdfPageHeight-2*pdfBorderInset, "D")
		pdf.SetDrawColor(0, 0, 0)
		pdf.SetLineWidth(0.2)
	})
	pdf.AddPage()

	align := "L"
	if e.rightToLeft && e.fontPath != "" {
		align = "R"
	}

	if data.Title != "" {
		pdf.SetFont(family, "B", 14)
		pdf.CellFormat(0, 10, data.Title, "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	colWidth := pdfContentWidth / float64(len(data.Headers))
	pdf.SetFont(family, "B", 10)
	pdf.SetFillColor(221, 235, 247)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(data.Notes) > 0 {
		pdf.Ln(4)
		pdf.SetFont(family, "", 10)
		for _, note := range data.Notes {
			if note == "" {
				continue
			}
			pdf.MultiCell(0, 6, note, "", align, false)
			pdf.Ln(2)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
