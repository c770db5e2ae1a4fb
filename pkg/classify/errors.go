package classify

import "fmt"

// ParseFailure means the oracle's response could not be parsed into the
// expected JSON shape. Recoverable: the caller falls back to manual
// selection, no partial state is committed.
type ParseFailure struct {
	Stage  string // "sheet" or "column"
	Reason string
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("%s classification parse failure: %s", e.Stage, e.Reason)
}

// ValidationFailure means the oracle answered with something outside the
// legal candidate set. Treated as "no match found" for that unit of work;
// never silently substituted with a guess.
type ValidationFailure struct {
	Stage    string
	Proposed string
	Reason   string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("%s classification validation failure: %s", e.Stage, e.Reason)
}
