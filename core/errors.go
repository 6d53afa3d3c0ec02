package core

import (
	"errors"
	"fmt"
)

var (
	// ErrXRefParse is returned by XRef.Parse when the structured cross-reference
	// chain is unusable and the document should be re-parsed in recovery mode.
	ErrXRefParse = errors.New("invalid cross-reference data")

	// ErrInvalidPDF is returned when neither the structured path nor the
	// recovery scan can find a usable trailer.
	ErrInvalidPDF = errors.New("invalid PDF structure")

	// ErrStartXRefNotFound is returned when the startxref marker is absent.
	ErrStartXRefNotFound = errors.New("startxref not found")
)

// MissingDataError reports that the bytes [Begin, End) are needed but have
// not arrived yet. It is the recoverable signal that drives range requests:
// the caller loads the interval and replays the same operation.
type MissingDataError struct {
	Begin int64
	End   int64
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing data [%d, %d)", e.Begin, e.End)
}

// Range returns the interval that must be loaded.
func (e *MissingDataError) Range() Range {
	return Range{Begin: e.Begin, End: e.End}
}

// IsMissingData reports whether err is, or wraps, a *MissingDataError.
func IsMissingData(err error) (*MissingDataError, bool) {
	var m *MissingDataError
	if errors.As(err, &m) {
		return m, true
	}
	return nil, false
}

// FormatError describes a structural violation of the PDF syntax.
type FormatError struct {
	msg string
}

func (e *FormatError) Error() string {
	return e.msg
}

func formatErrorf(format string, args ...interface{}) error {
	return &FormatError{msg: fmt.Sprintf(format, args...)}
}

// IsFormatError reports whether err is, or wraps, a *FormatError.
func IsFormatError(err error) bool {
	var f *FormatError
	return errors.As(err, &f)
}

// Range is a half-open byte interval.
type Range struct {
	Begin int64
	End   int64
}
