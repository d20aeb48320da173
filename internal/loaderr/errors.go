package loaderr

import (
	"strings"
)

// Kind categorizes a load failure.
type Kind string

const (
	KindPathOverrideInvalid Kind = "path_override_invalid"
	KindModuleNotFound      Kind = "module_not_found"
	KindBuildFailure        Kind = "build_failure"
	KindLoadFailure         Kind = "load_failure"
	KindSymbolResolution    Kind = "symbol_resolution_failure"
)

// Sentinels for errors.Is.
var (
	ErrPathOverrideInvalid = &Error{Kind: KindPathOverrideInvalid}
	ErrModuleNotFound      = &Error{Kind: KindModuleNotFound}
	ErrBuildFailure        = &Error{Kind: KindBuildFailure}
	ErrLoadFailure         = &Error{Kind: KindLoadFailure}
	ErrSymbolResolution    = &Error{Kind: KindSymbolResolution}
)

// Error is the structured error for a failed module load.
type Error struct {
	Kind     Kind
	Module   string
	Path     string
	Detail   string
	Searched []string // every candidate path looked at, for module_not_found
	Log      string   // full build output, for build_failure
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Kind))
	b.WriteByte(']')

	if e.Module != "" {
		b.WriteString(" module ")
		b.WriteString(e.Module)
	}
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	if len(e.Searched) > 0 {
		b.WriteString("\nsearched:")
		for _, p := range e.Searched {
			b.WriteString("\n  ")
			b.WriteString(p)
		}
	}
	if e.Log != "" {
		b.WriteString("\nbuild log follows:\n==========\n")
		b.WriteString(e.Log)
		if !strings.HasSuffix(e.Log, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("==========")
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a loader error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New starts building an error of the given kind for a module.
func New(kind Kind, module string) *Builder {
	return &Builder{err: Error{Kind: kind, Module: module}}
}

// Path sets the file or directory the error is about.
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Detail sets a human readable explanation.
func (b *Builder) Detail(detail string) *Builder {
	b.err.Detail = detail
	return b
}

// Searched records the candidate paths that were examined.
func (b *Builder) Searched(paths ...string) *Builder {
	b.err.Searched = paths
	return b
}

// Log attaches build output.
func (b *Builder) Log(log string) *Builder {
	b.err.Log = log
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}
