// Package pdftest builds small valid PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Build returns a PDF with the given number of blank pages. When size is
// larger than the natural length, a comment line after the header pads the
// file to exactly size bytes.
func Build(pages, size int) []byte {
	b := build(pages, -1)
	if size <= len(b) {
		return b
	}

	// The comment line costs two bytes on top of its filler.
	pad := size - len(b) - 2
	for pad >= 0 {
		c := build(pages, pad)
		if len(c) <= size {
			b = c
			break
		}
		pad -= len(c) - size
	}
	for len(b) < size {
		b = append(b, '\n')
	}
	return b
}

// build writes the file with a correct cross-reference table. A negative
// pad omits the comment line.
func build(pages, pad int) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
	}
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	if pad >= 0 {
		buf.WriteString("%")
		buf.WriteString(strings.Repeat("x", pad))
		buf.WriteString("\n")
	}

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
