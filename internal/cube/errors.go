package cube

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch reports a failed triple-store call or content that could not be read.
	ErrFetch = errors.New("triple store fetch failed")
	// ErrEmptyResult reports a successful query that returned no rows where at least one was expected.
	ErrEmptyResult = errors.New("query returned no rows")
	// ErrParse reports malformed delimited text.
	ErrParse = errors.New("malformed tabular result")
	// ErrLoad reports a failed graph-store statement.
	ErrLoad = errors.New("graph load failed")
	// ErrInvalidIRI reports an IRI that cannot be written into a SPARQL IRIREF.
	ErrInvalidIRI = errors.New("invalid IRI")
)

// LoadError describes the graph-store write that aborted a load.
type LoadError struct {
	Step  string
	Label string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("graph load failed at %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("graph load failed at %s (%s): %v", e.Step, e.Label, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrLoad) match any LoadError.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }
