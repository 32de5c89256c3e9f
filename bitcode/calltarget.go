package bitcode

import "github.com/google/uuid"

// CallTarget is what a Call statement's operand actually resolves to once
// decoded: a same-region address, an index into a stub/PLT table, or a
// cross-function reference by UUID. spec.md §4.2 only names the plain
// Constant-address case; the stub and UUID variants restore the original
// implementation's `call <stub, leb128>` / `call <uuid, leb128>` bitcode
// opcodes (core/src/il/bitcode.rs), dropped by the distilled spec but kept
// here because a call-graph builder needs to tell "jumps to 0x4010" apart
// from "jumps through the PLT" or "references another Function".
type CallTarget struct {
	kind  callTargetKind
	addr  uint64
	stub  uint64
	ident uuid.UUID
}

type callTargetKind uint8

const (
	callTargetAddress callTargetKind = iota
	callTargetStubIndex
	callTargetUUID
)

// CallTargetAddress builds a direct in-region call target.
func CallTargetAddress(addr uint64) CallTarget {
	return CallTarget{kind: callTargetAddress, addr: addr}
}

// CallTargetStub builds a call target referring to the stub/PLT table.
func CallTargetStub(index uint64) CallTarget {
	return CallTarget{kind: callTargetStubIndex, stub: index}
}

// CallTargetFunction builds a call target referring to another Function by
// its UUID.
func CallTargetFunction(id uuid.UUID) CallTarget {
	return CallTarget{kind: callTargetUUID, ident: id}
}

// Address returns the target address and true if t is a direct call.
func (t CallTarget) Address() (uint64, bool) {
	return t.addr, t.kind == callTargetAddress
}

// StubIndex returns the stub table index and true if t is a stub call.
func (t CallTarget) StubIndex() (uint64, bool) {
	return t.stub, t.kind == callTargetStubIndex
}

// FunctionUUID returns the referenced function's UUID and true if t is a
// cross-function call.
func (t CallTarget) FunctionUUID() (uuid.UUID, bool) {
	return t.ident, t.kind == callTargetUUID
}
