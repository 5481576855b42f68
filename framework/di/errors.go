package di

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFrozen is returned when a compiled graph is mutated.
	ErrFrozen = errors.New("di: graph is frozen")

	// ErrNotCompiled is returned when an operation needs a frozen graph.
	ErrNotCompiled = errors.New("di: graph is not compiled")
)

// MetadataConflictError is returned by the Reader when mutually exclusive
// markers are declared on the same target.
type MetadataConflictError struct {
	Class   string
	Target  string
	Markers []string
}

func (e *MetadataConflictError) Error() string {
	return fmt.Sprintf("di: conflicting metadata on %s (%s): %s",
		e.Class, e.Target, strings.Join(e.Markers, " vs "))
}

// UnresolvableParameterError is returned when a parameter has neither a
// usable type nor a default and nothing was wired explicitly.
type UnresolvableParameterError struct {
	Service string
	Param   string
	Reason  string
}

func (e *UnresolvableParameterError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no type hint and no default value"
	}
	return fmt.Sprintf("di: cannot autowire service %q: parameter %q: %s", e.Service, e.Param, reason)
}

// AmbiguousServiceError is returned when more than one definition matches
// a parameter type and no explicit service id was given.
type AmbiguousServiceError struct {
	Service    string
	Param      string
	Type       string
	Candidates []string
}

func (e *AmbiguousServiceError) Error() string {
	return fmt.Sprintf("di: cannot autowire service %q: parameter %q references %s but %d services match: %s",
		e.Service, e.Param, e.Type, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

// UnresolvedDependencyError is returned when a dependency has no match and
// no default.
type UnresolvedDependencyError struct {
	Service string
	Param   string
	Target  string
	Reason  string
}

func (e *UnresolvedDependencyError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no service matches"
	}
	return fmt.Sprintf("di: cannot autowire service %q: parameter %q (%s): %s",
		e.Service, e.Param, e.Target, reason)
}

// CompilerPassError wraps a failure raised by a compiler pass.
type CompilerPassError struct {
	Pass string
	Err  error
}

func (e *CompilerPassError) Error() string {
	return fmt.Sprintf("di: compiler pass %q failed: %v", e.Pass, e.Err)
}

// Unwrap returns the pass failure.
func (e *CompilerPassError) Unwrap() error { return e.Err }

// CacheCorruptError is returned when a cache artifact cannot be turned back
// into a valid graph. Callers recompile instead of failing.
type CacheCorruptError struct {
	Path string
	Err  error
}

func (e *CacheCorruptError) Error() string {
	return fmt.Sprintf("di: container cache %s is corrupt: %v", e.Path, e.Err)
}

// Unwrap returns the decoding or validation failure.
func (e *CacheCorruptError) Unwrap() error { return e.Err }

// DuplicateServiceError is returned when an id or alias is registered twice.
type DuplicateServiceError struct {
	ID string
}

func (e *DuplicateServiceError) Error() string {
	return fmt.Sprintf("di: service %q is already defined", e.ID)
}

// ServiceNotFoundError is returned when an id is neither a definition nor an
// alias.
type ServiceNotFoundError struct {
	ID     string
	Reason string
}

func (e *ServiceNotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("di: service %q not found: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("di: service %q not found", e.ID)
}

// CircularDependencyError reports a reference cycle.
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	if len(e.Path) == 0 {
		return "di: circular dependency detected"
	}
	return fmt.Sprintf("di: circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

// InvalidClassError is returned when a class descriptor cannot be registered.
type InvalidClassError struct {
	Class  string
	Reason string
}

func (e *InvalidClassError) Error() string {
	name := e.Class
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("di: invalid class %s: %s", name, e.Reason)
}
