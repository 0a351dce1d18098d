package llm

import "strings"

// Fragment is one element of a generation stream. It is either a slice of
// model output (Text) or a terminal failure (Err); never both.
type Fragment struct {
	Text string
	Err  error
}

// TextFragment builds a fragment carrying model output.
func TextFragment(text string) Fragment {
	return Fragment{Text: text}
}

// ErrorFragment builds a fragment carrying a failure.
func ErrorFragment(err error) Fragment {
	return Fragment{Err: err}
}

// IsError reports whether the fragment carries a failure instead of text.
func (f Fragment) IsError() bool {
	return f.Err != nil
}

// String renders the fragment the way a UI shows it: the text, or the error message.
func (f Fragment) String() string {
	if f.Err != nil {
		return f.Err.Error()
	}
	return f.Text
}

// Assembler concatenates fragments in arrival order into the final answer.
// The first error fragment is kept; text received before it is preserved.
type Assembler struct {
	text  strings.Builder
	err   error
	count int
}

// Add appends one fragment and returns the text assembled so far.
func (a *Assembler) Add(f Fragment) string {
	if f.Err != nil {
		if a.err == nil {
			a.err = f.Err
		}
		return a.text.String()
	}

	a.text.WriteString(f.Text)
	a.count++
	return a.text.String()
}

// Text returns the concatenation of all text fragments.
func (a *Assembler) Text() string {
	return a.text.String()
}

// Err returns the first error fragment seen, if any.
func (a *Assembler) Err() error {
	return a.err
}

// Count returns the number of text fragments added.
func (a *Assembler) Count() int {
	return a.count
}

// Reset clears the assembler for reuse.
func (a *Assembler) Reset() {
	a.text.Reset()
	a.err = nil
	a.count = 0
}
