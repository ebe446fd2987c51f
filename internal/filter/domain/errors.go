package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned for actions the session does not implement.
var ErrUnknownCommand = errors.New("unknown command")

// LoadError reports that one block-list could not be fetched or parsed.
// The list is treated as empty.
type LoadError struct {
	List   string // "domains", "patterns" or "selectors"
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s list from %q: %v", e.List, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ParseError reports a single malformed input (URL or selector) that was
// treated as non-matching.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PersistError reports a failed durable write of a state key.
type PersistError struct {
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %q: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
