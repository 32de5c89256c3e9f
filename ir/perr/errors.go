// Package perr defines the typed error taxonomy shared across Panopticon's
// core components (spec §7). Every variant carries a human-readable message
// plus an optional cause and can be distinguished by Kind for callers that
// need to branch on error category instead of matching on text.
package perr

import "fmt"

// Kind discriminates the error taxonomy's categories.
type Kind int

const (
	// Decode errors (§7.1). Local recovery: the driver inserts a Failed
	// vertex and continues.
	KindUnrecognizedInstruction Kind = iota
	KindMisalignedJump
	KindOutOfRegion

	// Structural errors (§7.2). Surface to the caller.
	KindFunctionHasNoEntryPoint
	KindDisconnectedInputGraph
	KindEmptyInputGraph
	KindNonContiguousBasicBlock

	// IR type errors (§7.3), raised by Statement.SanityCheck and the
	// bitcode encoder.
	KindSizeMismatch
	KindAssigneeSizeMismatch
	KindSelectOutOfRange
	KindMemoryNotByteAligned
	KindMemorySizeZero
	KindCallMustBeUndefined
	KindPhiSizeMismatch
	KindOperandSizeZero

	// Layout errors (§7.5).
	KindLpSolverInfeasible
	KindEmptyGraph
	KindNotConnected
	KindInternalRankingFailure

	// Store errors (§7.6).
	KindCorruptBitcode
)

var names = map[Kind]string{
	KindUnrecognizedInstruction: "UnrecognizedInstruction",
	KindMisalignedJump:          "MisalignedJump",
	KindOutOfRegion:             "OutOfRegion",

	KindFunctionHasNoEntryPoint: "FunctionHasNoEntryPoint",
	KindDisconnectedInputGraph:  "DisconnectedInputGraph",
	KindEmptyInputGraph:         "EmptyInputGraph",
	KindNonContiguousBasicBlock: "NonContiguousBasicBlock",

	KindSizeMismatch:         "SizeMismatch",
	KindAssigneeSizeMismatch: "AssigneeSizeMismatch",
	KindSelectOutOfRange:     "SelectOutOfRange",
	KindMemoryNotByteAligned: "MemoryNotByteAligned",
	KindMemorySizeZero:       "MemorySizeZero",
	KindCallMustBeUndefined:  "CallMustBeUndefined",
	KindPhiSizeMismatch:      "PhiSizeMismatch",
	KindOperandSizeZero:      "OperandSizeZero",

	KindLpSolverInfeasible:     "LpSolverInfeasible",
	KindEmptyGraph:             "EmptyGraph",
	KindNotConnected:           "NotConnected",
	KindInternalRankingFailure: "InternalRankingFailure",

	KindCorruptBitcode: "CorruptBitcode",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a taxonomy-tagged error value. Cause is optional and nil for
// errors raised directly by sanity checks rather than wrapping another
// failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that carries cause as its underlying error.
func Wrap(cause error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}
