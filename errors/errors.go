package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseAlloc    Phase = "alloc"    // arena and bridge operations
	PhaseWrite    Phase = "write"    // buffer writer
	PhaseRead     Phase = "read"     // buffer reader and views
	PhaseCall     Phase = "call"     // envelope and delegate dispatch
	PhaseShape    Phase = "shape"    // return-shape selection
	PhaseGenerate Phase = "generate" // scaffolding generation
	PhaseBind     Phase = "bind"     // guest binding and contract checks
)

// Kind categorizes the error
type Kind string

const (
	KindAllocation        Kind = "allocation_failed"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindProtocol          Kind = "protocol_violation"
	KindCoercion          Kind = "coercion_failed"
	KindInvalidDefinition Kind = "invalid_definition"
	KindMissingExport     Kind = "missing_export"
	KindVersionMismatch   Kind = "version_mismatch"
	KindChecksumMismatch  Kind = "checksum_mismatch"
	KindPanic             Kind = "native_panic"
	KindUnknown           Kind = "unknown"
)

// kind codes are the stable numeric form used in envelope error payloads.
var kindCodes = map[Kind]uint32{
	KindAllocation:        1,
	KindOutOfBounds:       2,
	KindProtocol:          3,
	KindCoercion:          4,
	KindInvalidDefinition: 5,
	KindMissingExport:     6,
	KindVersionMismatch:   7,
	KindChecksumMismatch:  8,
	KindPanic:             9,
}

// Code returns the wire code for the kind, 0 if unknown.
func (k Kind) Code() uint32 {
	return kindCodes[k]
}

// KindForCode is the inverse of Kind.Code. Unknown codes map to the empty
// Kind so round-tripping never invents a category.
func KindForCode(code uint32) Kind {
	for k, c := range kindCodes {
		if c == code {
			return k
		}
	}
	return ""
}

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Want   string
	Got    string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Want != "" || e.Got != "" {
		b.WriteString(": ")
		if e.Want != "" && e.Got != "" {
			b.WriteString("want ")
			b.WriteString(e.Want)
			b.WriteString(", got ")
			b.WriteString(e.Got)
		} else if e.Want != "" {
			b.WriteString("want ")
			b.WriteString(e.Want)
		} else {
			b.WriteString("got ")
			b.WriteString(e.Got)
		}
	}

	if e.Detail != "" {
		if e.Want != "" || e.Got != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Want sets the expected type or value description
func (b *Builder) Want(t string) *Builder {
	b.err.Want = t
	return b
}

// Got sets the actual type or value description
func (b *Builder) Got(t string) *Builder {
	b.err.Got = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds error for a memory access
func OutOfBounds(phase Phase, ptr, n, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access of %d bytes at 0x%x exceeds memory size %d", n, ptr, size),
		Value:  ptr,
	}
}

// Protocol creates a protocol violation error. These are panicked at the
// violation site and must never be converted into return values.
func Protocol(phase Phase, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindProtocol,
		Detail: detail,
	}
}

// IsProtocol reports whether a recovered panic value is a protocol
// violation. Envelope recovery uses it to re-panic instead of capturing.
func IsProtocol(v any) bool {
	if e, ok := v.(*Error); ok {
		return e.Kind == KindProtocol
	}
	return false
}

// CoercionFailed creates a return-shape coercion error
func CoercionFailed(path []string, want, got string) *Error {
	return &Error{
		Phase: PhaseCall,
		Kind:  KindCoercion,
		Path:  path,
		Want:  want,
		Got:   got,
	}
}

// InvalidDefinition creates a definition validation error
func InvalidDefinition(path []string, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseGenerate,
		Kind:   KindInvalidDefinition,
		Path:   path,
		Detail: detail,
	}
}

// MissingExport creates a bind error for a required guest export
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindMissingExport,
		Detail: fmt.Sprintf("guest does not export %q", name),
	}
}

// VersionMismatch creates a contract version error
func VersionMismatch(want, got uint32) *Error {
	return &Error{
		Phase: PhaseBind,
		Kind:  KindVersionMismatch,
		Want:  fmt.Sprintf("contract version %d", want),
		Got:   fmt.Sprintf("%d", got),
	}
}

// ChecksumMismatch creates a method checksum error
func ChecksumMismatch(iface, method string, want, got uint16) *Error {
	return &Error{
		Phase: PhaseBind,
		Kind:  KindChecksumMismatch,
		Path:  []string{iface, method},
		Want:  fmt.Sprintf("0x%04x", want),
		Got:   fmt.Sprintf("0x%04x", got),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// DefinitionError groups every problem found while validating one
// interface definition, so a generator run reports them all at once.
type DefinitionError struct {
	Problems []*Error
}

// NewDefinitionError creates a grouped validation error. Returns nil when
// there are no problems, so callers can return it unconditionally.
func NewDefinitionError(problems []*Error) *DefinitionError {
	if len(problems) == 0 {
		return nil
	}
	return &DefinitionError{Problems: problems}
}

func (e *DefinitionError) Error() string {
	if len(e.Problems) == 0 {
		return "[generate] invalid_definition: no problems recorded"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("definition has %d problem(s):\n", len(e.Problems)))

	// Group by the first path element for cleaner output
	byOwner := make(map[string][]*Error)
	var ownerOrder []string
	for _, p := range e.Problems {
		owner := "(definition)"
		if len(p.Path) > 0 {
			owner = p.Path[0]
		}
		if _, exists := byOwner[owner]; !exists {
			ownerOrder = append(ownerOrder, owner)
		}
		byOwner[owner] = append(byOwner[owner], p)
	}

	for _, owner := range ownerOrder {
		b.WriteString("\n  ")
		b.WriteString(owner)
		b.WriteString(":\n")
		for _, p := range byOwner[owner] {
			b.WriteString("    - ")
			if len(p.Path) > 1 {
				b.WriteString(strings.Join(p.Path[1:], "."))
				b.WriteString(": ")
			}
			b.WriteString(p.Detail)
			if p.Want != "" || p.Got != "" {
				b.WriteString(fmt.Sprintf(" (want %s, got %s)", p.Want, p.Got))
			}
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *DefinitionError) Is(target error) bool {
	_, ok := target.(*DefinitionError)
	return ok
}
