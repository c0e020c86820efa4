package ui

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Entry records a single UI method call for test assertions.
type Entry struct {
	Method string
	Value  string
	// Rows holds the cells of Table and KeyValue calls.
	Rows [][]string
}

// sharedState is shared by a RecordingUI and every child created with
// Indent.
type sharedState struct {
	entries []Entry
	buf     *bytes.Buffer
}

// RecordingUI implements UI for tests. Every call is captured in an entry
// log that can be inspected with [RecordingUI.Entries] and
// [RecordingUI.HasMessage].
type RecordingUI struct {
	shared      *sharedState
	indentLevel int
	aligned     []int
}

func NewRecordingUI() *RecordingUI {
	return &RecordingUI{
		shared: &sharedState{buf: &bytes.Buffer{}},
	}
}

func (r *RecordingUI) record(method, value string, rows [][]string) {
	r.shared.entries = append(r.shared.entries, Entry{
		Method: method,
		Value:  value,
		Rows:   rows,
	})
}

// Style returns the plain text of t.
func (r *RecordingUI) Style(t StyledText) string {
	return t.Text
}

func (r *RecordingUI) Info(format string, args ...any) {
	r.record("Info", fmt.Sprintf(format, args...), nil)
}

func (r *RecordingUI) Success(format string, args ...any) {
	r.record("Success", fmt.Sprintf(format, args...), nil)
}

func (r *RecordingUI) Warn(format string, args ...any) {
	r.record("Warn", fmt.Sprintf(format, args...), nil)
}

func (r *RecordingUI) Error(format string, args ...any) {
	r.record("Error", fmt.Sprintf(format, args...), nil)
}

func (r *RecordingUI) Critical(format string, args ...any) {
	r.record("Critical", fmt.Sprintf(format, args...), nil)
}

func (r *RecordingUI) Section(title string) {
	r.record("Section", title, nil)
}

func (r *RecordingUI) KeyValue(rows [][2]string) {
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, []string{row[0], row[1]})
	}
	r.record("KeyValue", "", cells)
}

func (r *RecordingUI) Table(headers []string, rows [][]string) {
	r.record("Table", strings.Join(headers, "|"), rows)
}

// TableWithGroups records the groups flattened into one row list.
func (r *RecordingUI) TableWithGroups(headers []string, groups [][][]string) {
	rows := [][]string{}
	for _, g := range groups {
		rows = append(rows, g...)
	}
	r.record("Table", strings.Join(headers, "|"), rows)
}

func (r *RecordingUI) Spinner(msg string) func() {
	r.record("Spinner", msg, nil)
	return func() {}
}

func (r *RecordingUI) AlignRight(cols ...int) UI {
	return &RecordingUI{
		shared:      r.shared,
		indentLevel: r.indentLevel,
		aligned:     cols,
	}
}

// Indent returns a child sharing the same entry log.
func (r *RecordingUI) Indent() UI {
	return &RecordingUI{
		shared:      r.shared,
		indentLevel: r.indentLevel + 1,
		aligned:     r.aligned,
	}
}

// Writer returns a writer that appends to the internal buffer. Indentation
// is not applied.
func (r *RecordingUI) Writer() io.Writer {
	return r.shared.buf
}

// Entries returns all recorded UI calls in order.
func (r *RecordingUI) Entries() []Entry {
	return r.shared.entries
}

func (r *RecordingUI) InfoMessages() []string {
	return r.methodValues("Info")
}

func (r *RecordingUI) ErrorMessages() []string {
	return r.methodValues("Error")
}

func (r *RecordingUI) WarnMessages() []string {
	return r.methodValues("Warn")
}

// Tables returns the recorded Table and TableWithGroups calls.
func (r *RecordingUI) Tables() []Entry {
	var out []Entry
	for _, e := range r.shared.entries {
		if e.Method == "Table" {
			out = append(out, e)
		}
	}
	return out
}

// HasMessage reports whether any recorded value or cell contains substr,
// ignoring case.
func (r *RecordingUI) HasMessage(substr string) bool {
	lower := strings.ToLower(substr)
	for _, e := range r.shared.entries {
		if strings.Contains(strings.ToLower(e.Value), lower) {
			return true
		}
		for _, row := range e.Rows {
			for _, c := range row {
				if strings.Contains(strings.ToLower(c), lower) {
					return true
				}
			}
		}
	}
	return false
}

// Output returns everything written to Writer().
func (r *RecordingUI) Output() string {
	return r.shared.buf.String()
}

func (r *RecordingUI) methodValues(method string) []string {
	var out []string
	for _, e := range r.shared.entries {
		if e.Method == method {
			out = append(out, e.Value)
		}
	}
	return out
}
