// Package pdftext extracts machine-readable text from PDF statements.
//
// Failures are typed so the pipeline can react per kind: password problems
// are reported back to the user, corrupt files fail the job, and documents
// without extractable text (scanned images) fall back to vision extraction.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Kind classifies an extraction failure.
type Kind string

const (
	PasswordRequired  Kind = "PASSWORD_REQUIRED"
	PasswordIncorrect Kind = "PASSWORD_INCORRECT"
	CorruptDocument   Kind = "CORRUPT_DOCUMENT"
	NoExtractableText Kind = "NO_EXTRACTABLE_TEXT"
)

// Error is a typed extraction failure.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("pdftext: %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("pdftext: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the failure kind of err, or "" when err is not a pdftext
// failure.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// Document is the extracted content of a PDF.
type Document struct {
	Text      string
	PageCount int
}

// minTextLength is the quality gate: statements with machine text carry far
// more than this; anything shorter is treated as a scanned image.
const minTextLength = 100

// Extractor extracts text from PDF bytes. It is stateless; the struct exists
// so callers can depend on an interface-sized surface.
type Extractor struct{}

// New returns a text extractor.
func New() *Extractor { return &Extractor{} }

// Extract parses the PDF container and returns its plain text. The password
// is tried once; an empty password on an encrypted document yields
// PasswordRequired, a rejected one PasswordIncorrect. Extracted text shorter
// than the quality gate yields NoExtractableText so the caller can fall back
// to vision extraction.
func (x *Extractor) Extract(data []byte, password string) (doc *Document, err error) {
	// The underlying reader panics on some malformed containers; treat any
	// panic as a corrupt document rather than crashing the worker.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = &Error{Kind: CorruptDocument, cause: fmt.Errorf("reader panic: %v", r)}
		}
	}()

	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, &Error{Kind: CorruptDocument, cause: errors.New("missing %PDF header")}
	}

	// The password callback is consulted only for encrypted documents and
	// must eventually return "" to stop the retry loop inside the reader.
	attempts := 0
	reader, err := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), func() string {
		attempts++
		if attempts > 1 {
			return ""
		}
		return password
	})
	if err != nil {
		return nil, classifyReaderError(err, password)
	}

	var buf bytes.Buffer
	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, &Error{Kind: CorruptDocument, cause: err}
	}
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, &Error{Kind: CorruptDocument, cause: err}
	}

	text := strings.TrimSpace(buf.String())
	if len(text) < minTextLength {
		return nil, &Error{Kind: NoExtractableText}
	}

	return &Document{Text: text, PageCount: reader.NumPage()}, nil
}

func classifyReaderError(err error, password string) *Error {
	if errors.Is(err, pdf.ErrInvalidPassword) || strings.Contains(err.Error(), "invalid password") {
		if password == "" {
			return &Error{Kind: PasswordRequired, cause: err}
		}
		return &Error{Kind: PasswordIncorrect, cause: err}
	}
	return &Error{Kind: CorruptDocument, cause: err}
}
