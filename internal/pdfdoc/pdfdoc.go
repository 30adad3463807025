// Package pdfdoc reads basic facts out of uploaded PDF files.
package pdfdoc

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Info describes a parsed PDF.
type Info struct {
	Pages int
}

// Inspect parses data as a PDF and reports its page count. Malformed
// files return an error; the parser's panics on broken cross-reference
// tables are turned into errors as well.
func Inspect(data []byte) (info Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, fmt.Errorf("parse pdf: %w", err)
	}
	return Info{Pages: reader.NumPage()}, nil
}
