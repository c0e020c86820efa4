package ui

import (
	"encoding/json"
	"io"
)

// Severity classifies the visual weight of a piece of inline text. The
// terminal maps each value to a colour; JSON and tests see plain text.
type Severity uint8

const (
	SeverityInfo     Severity = iota // plain
	SeveritySuccess                  // green, e.g. claimable amounts
	SeverityWarn                     // yellow, e.g. no vestings
	SeverityError                    // red, e.g. a failed contract
	SeverityCritical                 // bold
)

// StyledText pairs a plain string with a Severity annotation. It marshals
// as the plain Text string.
type StyledText struct {
	Text     string
	Severity Severity
}

func (s StyledText) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Text)
}

// UI is the output surface of the vestingscope commands.
//
// TerminalUI writes coloured output to stdout; RecordingUI captures every
// call so command output can be asserted in tests. Use [UI.Indent] to get a
// child UI one level deeper that shares the parent's writer.
type UI interface {
	// Style returns the text of t coloured according to its Severity, or
	// the plain text when colours are disabled.
	Style(t StyledText) string

	Info(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	// Error writes a failure in red. It does not exit.
	Error(format string, args ...any)
	Critical(format string, args ...any)

	// Section writes a separator line centred around title.
	Section(title string)

	// KeyValue renders an aligned 2-column block.
	KeyValue(rows [][2]string)

	// Table renders a bordered table with an optional header row.
	Table(headers []string, rows [][]string)

	// TableWithGroups renders a bordered table whose row groups are
	// separated by a divider, one group per contract for instance.
	TableWithGroups(headers []string, groups [][][]string)

	// Spinner starts an animated spinner and returns the function that
	// stops it. It is a no-op outside a terminal.
	Spinner(msg string) func()

	// AlignRight returns a UI whose tables right align the given columns.
	AlignRight(cols ...int) UI

	Indent() UI

	// Writer returns an io.Writer that prefixes every line with the
	// current indentation.
	Writer() io.Writer
}
