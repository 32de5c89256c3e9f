package bitcode

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/panopticon-re/panopticon/ir"
	"github.com/panopticon-re/panopticon/ir/perr"
)

// operandKind mirrors the three-way dispatch the wire format needs per
// operand: Undefined carries no payload, Constant carries (bits, value),
// Variable carries (name, subscript, offset, size). Go's stdlib
// encoding/binary already has variable-length unsigned integers
// (Uvarint/PutUvarint), so unlike the Rust original this package needs no
// separate leb128 crate.
type operandKind uint8

const (
	kindUndefined operandKind = iota
	kindConstant
	kindVariable
)

func kindOf(v ir.Rvalue) operandKind {
	switch {
	case v.IsConstant():
		return kindConstant
	case v.IsVariable():
		return kindVariable
	default:
		return kindUndefined
	}
}

// Store is the append-only statement log: a byte buffer plus the shared
// string pool its encoding references by index (spec §4.2).
type Store struct {
	data []byte
	pool *pool
}

// New returns an empty Store.
func New() *Store {
	return &Store{pool: newPool()}
}

// Len reports the store's current byte length.
func (s *Store) Len() int { return len(s.data) }

// Push encodes stmt at the current end of the buffer and returns the
// number of bytes it consumed, so callers can compute its half-open byte
// range [start, start+len).
func (s *Store) Push(stmt ir.Statement) (int, error) {
	if err := stmt.SanityCheck(); err != nil {
		return 0, errors.WithStack(err)
	}
	start := len(s.data)
	s.encodeStatement(stmt)
	return len(s.data) - start, nil
}

// Append encodes a batch of statements and returns their combined byte
// range.
func (s *Store) Append(stmts []ir.Statement) (start, end int, err error) {
	start = len(s.data)
	for i, stmt := range stmts {
		if _, err := s.Push(stmt); err != nil {
			return 0, 0, errors.Wrapf(err, "append: statement %d", i)
		}
	}
	return start, len(s.data), nil
}

// sentinel tag bytes for the stub/UUID call-target records. They sit
// outside ir.OpTag's range so decodeStatement can tell them apart from an
// ordinary encoded Statement on sight.
const (
	tagStubCall byte = 0xfe
	tagUUIDCall byte = 0xff
)

// PushStubCall records an indirect call through the stub/PLT table at
// index stubIndex (core/src/il/bitcode.rs's `call <stub, leb128>`).
func (s *Store) PushStubCall(stubIndex uint64) int {
	start := len(s.data)
	s.writeAssignee(ir.UndefinedL)
	s.writeByte(tagStubCall)
	s.writeUvarint(stubIndex)
	return len(s.data) - start
}

// PushUUIDCall records a call to another Function referenced by UUID
// (core/src/il/bitcode.rs's `call <uuid, leb128>`).
func (s *Store) PushUUIDCall(id uuid.UUID) int {
	start := len(s.data)
	s.writeAssignee(ir.UndefinedL)
	s.writeByte(tagUUIDCall)
	s.data = append(s.data, id[:]...)
	return len(s.data) - start
}

// IterStatements decodes and returns every statement in the half-open byte
// range [start, end). start MUST be a statement boundary (normally the
// start value Push/Append returned).
func (s *Store) IterStatements(start, end int) ([]ir.Statement, error) {
	if start < 0 || end > len(s.data) || start > end {
		return nil, perr.New(perr.KindCorruptBitcode, "iter_statements: range [%d, %d) out of bounds for a %d-byte store", start, end, len(s.data))
	}
	var out []ir.Statement
	pos := start
	for pos < end {
		stmt, _, n, err := s.decodeStatement(pos)
		if err != nil {
			return nil, errors.Wrapf(err, "iter_statements: at offset %d", pos)
		}
		out = append(out, stmt)
		pos += n
	}
	return out, nil
}

// IterCalls returns the CallTarget of every Call statement in the store,
// in encounter order. Direct calls (Call(Constant)) are the common case
// spec.md §4.2 names; stub and cross-function UUID targets are the
// supplemented forms (see SPEC_FULL.md, "Indirect call-target bitcode
// opcode") that the original's call-graph builder also consumes, pushed
// via PushStubCall/PushUUIDCall rather than Push.
func (s *Store) IterCalls() ([]CallTarget, error) {
	var out []CallTarget
	pos := 0
	for pos < len(s.data) {
		_, ct, n, err := s.decodeStatement(pos)
		if err != nil {
			return nil, errors.Wrapf(err, "iter_calls: at offset %d", pos)
		}
		if ct != nil {
			out = append(out, *ct)
		}
		pos += n
	}
	return out, nil
}

func putUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func (s *Store) writeByte(b byte) { s.data = append(s.data, b) }

func (s *Store) writeUvarint(v uint64) { s.data = putUvarint(s.data, v) }

func (s *Store) writeConstant(v ir.Rvalue) {
	bits, _ := v.Size()
	value, _ := v.Value()
	s.writeUvarint(uint64(bits))
	s.writeUvarint(value)
}

func (s *Store) writeVariable(v ir.Rvalue) {
	name, _ := v.Name()
	size, _ := v.Size()
	sub := uint64(0)
	if n, ok := v.Subscript(); ok {
		sub = uint64(n) + 1
	}
	s.writeUvarint(s.pool.intern(name))
	s.writeUvarint(sub)
	s.writeUvarint(uint64(v.Offset()))
	s.writeUvarint(uint64(size))
}

func (s *Store) writeOperand(v ir.Rvalue) {
	switch kindOf(v) {
	case kindConstant:
		s.writeConstant(v)
	case kindVariable:
		s.writeVariable(v)
	}
}

func (s *Store) writeAssignee(l ir.Lvalue) {
	if l.IsUndefined() {
		s.writeByte(0)
		return
	}
	s.writeByte(1)
	s.writeVariable(l.ToRvalue())
}

// encodeStatement appends stmt's wire form. Layout, per statement:
//
//	[assignee: kind byte + payload]
//	[opcode: 1 byte, ir.OpTag]
//	[operand kinds: 1 byte, 2 bits per operand slot]
//	[operand payloads, in canonical order]
//	[operation-specific extra fields]
//
// A binary operation whose both operands are Undefined is rewritten to
// Move(Undefined): such a statement can never pass SanityCheck (its
// assignee size could never be derived), so this only ever fires on
// already-degenerate input the caller chose to force through regardless.
func (s *Store) encodeStatement(stmt ir.Statement) {
	op := stmt.Op
	tag := op.Tag()

	if isBinaryTag(tag) {
		a, b := op.A(), op.B()
		if a.IsUndefined() && b.IsUndefined() {
			s.encodeStatement(ir.NewInternalStatement(stmt.Assignee, ir.Move[ir.Rvalue](ir.Undefined)))
			return
		}
	}

	s.writeAssignee(stmt.Assignee)
	s.writeByte(byte(tag))

	operands := op.Operands()
	var kindsByte byte
	for i, v := range operands {
		kindsByte |= byte(kindOf(v)) << uint(i*2)
	}
	s.writeByte(kindsByte)

	switch tag {
	case ir.OpPhi:
		// Encoded as 2 or 3 variable operands; a wholly-Undefined slot is
		// dropped rather than padded (spec §4.2).
		present := make([]ir.Rvalue, 0, 3)
		for _, v := range operands {
			if !v.IsUndefined() {
				present = append(present, v)
			}
		}
		s.writeByte(byte(len(present)))
		for _, v := range present {
			s.writeOperand(v)
		}
	default:
		for _, v := range operands {
			s.writeOperand(v)
		}
	}

	switch tag {
	case ir.OpZeroExtend, ir.OpSignExtend:
		s.writeUvarint(uint64(op.TargetBits()))
	case ir.OpSelect:
		s.writeUvarint(uint64(op.TargetBits()))
	case ir.OpLoad, ir.OpStore:
		region, endianness, bytes := op.MemoryFields()
		s.writeUvarint(s.pool.intern(region))
		s.writeByte(byte(endianness))
		s.writeUvarint(uint64(bytes))
	case ir.OpInitialize:
		name, bits := op.InitializeFields()
		s.writeUvarint(s.pool.intern(name))
		s.writeUvarint(uint64(bits))
	}
}

func isBinaryTag(t ir.OpTag) bool {
	switch t {
	case ir.OpAdd, ir.OpSubtract, ir.OpMultiply, ir.OpDivideUnsigned, ir.OpDivideSigned, ir.OpModulo,
		ir.OpShiftLeft, ir.OpShiftRightUnsigned, ir.OpShiftRightSigned, ir.OpAnd, ir.OpInclusiveOr, ir.OpExclusiveOr,
		ir.OpEqual, ir.OpLessUnsigned, ir.OpLessSigned, ir.OpLessOrEqualUnsigned, ir.OpLessOrEqualSigned:
		return true
	default:
		return false
	}
}

func operandCount(tag ir.OpTag) int {
	switch tag {
	case ir.OpZeroExtend, ir.OpSignExtend, ir.OpMove, ir.OpCall, ir.OpLoad:
		return 1
	case ir.OpSelect, ir.OpStore:
		return 2
	case ir.OpInitialize:
		return 0
	default:
		if isBinaryTag(tag) {
			return 2
		}
		return 0
	}
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, perr.New(perr.KindCorruptBitcode, "unexpected end of stream at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, perr.New(perr.KindCorruptBitcode, "malformed varint at offset %d", r.pos)
	}
	r.pos += n
	return v, nil
}

func (s *Store) readVariable(r *reader) (ir.Rvalue, error) {
	nameIdx, err := r.uvarint()
	if err != nil {
		return ir.Rvalue{}, err
	}
	name, ok := s.pool.lookup(nameIdx)
	if !ok {
		return ir.Rvalue{}, perr.New(perr.KindCorruptBitcode, "string pool index %d out of range", nameIdx)
	}
	subRaw, err := r.uvarint()
	if err != nil {
		return ir.Rvalue{}, err
	}
	sub := ir.NoSubscript
	if subRaw > 0 {
		sub = int(subRaw - 1)
	}
	offset, err := r.uvarint()
	if err != nil {
		return ir.Rvalue{}, err
	}
	size, err := r.uvarint()
	if err != nil {
		return ir.Rvalue{}, err
	}
	return ir.NewVariable(name, uint(size), sub, uint(offset)), nil
}

func (s *Store) readAssigneeVariable(r *reader) (ir.Lvalue, error) {
	v, err := s.readVariable(r)
	if err != nil {
		return ir.Lvalue{}, err
	}
	l, ok := ir.LvalueFromRvalue(v)
	if !ok {
		return ir.Lvalue{}, perr.New(perr.KindCorruptBitcode, "assignee %s is not a valid lvalue view", v)
	}
	return l, nil
}

func (r *reader) constant() (ir.Rvalue, error) {
	bits, err := r.uvarint()
	if err != nil {
		return ir.Rvalue{}, err
	}
	value, err := r.uvarint()
	if err != nil {
		return ir.Rvalue{}, err
	}
	return ir.NewConstant(value, uint(bits)), nil
}

func (s *Store) readOperand(r *reader, kind operandKind) (ir.Rvalue, error) {
	switch kind {
	case kindConstant:
		return r.constant()
	case kindVariable:
		return s.readVariable(r)
	default:
		return ir.Undefined, nil
	}
}

// decodeStatement decodes the statement starting at byte offset pos and
// returns it, its CallTarget if it is a direct (Constant-operand), stub or
// UUID call (nil otherwise, including a Call through a Variable), and the
// number of bytes consumed.
func (s *Store) decodeStatement(pos int) (ir.Statement, *CallTarget, int, error) {
	r := &reader{data: s.data, pos: pos}

	assigneeKind, err := r.byte()
	if err != nil {
		return ir.Statement{}, nil, 0, err
	}
	var assignee ir.Lvalue
	if assigneeKind == 0 {
		assignee = ir.UndefinedL
	} else {
		assignee, err = s.readAssigneeVariable(r)
		if err != nil {
			return ir.Statement{}, nil, 0, err
		}
	}

	tagByte, err := r.byte()
	if err != nil {
		return ir.Statement{}, nil, 0, err
	}

	if tagByte == tagStubCall {
		idx, err := r.uvarint()
		if err != nil {
			return ir.Statement{}, nil, 0, err
		}
		ct := CallTargetStub(idx)
		stmt := ir.NewInternalStatement(assignee, ir.Call[ir.Rvalue](ir.Undefined))
		return stmt, &ct, r.pos - pos, nil
	}
	if tagByte == tagUUIDCall {
		if r.pos+16 > len(r.data) {
			return ir.Statement{}, nil, 0, perr.New(perr.KindCorruptBitcode, "truncated uuid call target at offset %d", r.pos)
		}
		var id uuid.UUID
		copy(id[:], r.data[r.pos:r.pos+16])
		r.pos += 16
		ct := CallTargetFunction(id)
		stmt := ir.NewInternalStatement(assignee, ir.Call[ir.Rvalue](ir.Undefined))
		return stmt, &ct, r.pos - pos, nil
	}
	tag := ir.OpTag(tagByte)

	kindsByte, err := r.byte()
	if err != nil {
		return ir.Statement{}, nil, 0, err
	}

	var a, b, c ir.Rvalue = ir.Undefined, ir.Undefined, ir.Undefined

	if tag == ir.OpPhi {
		arity, err := r.byte()
		if err != nil {
			return ir.Statement{}, nil, 0,err
		}
		vals := make([]ir.Rvalue, arity)
		for i := range vals {
			kind := operandKind((kindsByte >> uint(i*2)) & 0x3)
			v, err := s.readOperand(r, kind)
			if err != nil {
				return ir.Statement{}, nil, 0,err
			}
			vals[i] = v
		}
		for len(vals) < 3 {
			vals = append(vals, ir.Undefined)
		}
		a, b, c = vals[0], vals[1], vals[2]
	} else {
		n := operandCount(tag)
		ops := make([]ir.Rvalue, n)
		for i := 0; i < n; i++ {
			kind := operandKind((kindsByte >> uint(i*2)) & 0x3)
			v, err := s.readOperand(r, kind)
			if err != nil {
				return ir.Statement{}, nil, 0,err
			}
			ops[i] = v
		}
		if n >= 1 {
			a = ops[0]
		}
		if n >= 2 {
			b = ops[1]
		}
	}

	var targetBits uint64
	var region string
	var endianness ir.Endianness
	var bytes uint64
	var initName string
	var initBits uint64

	switch tag {
	case ir.OpZeroExtend, ir.OpSignExtend, ir.OpSelect:
		targetBits, err = r.uvarint()
		if err != nil {
			return ir.Statement{}, nil, 0,err
		}
	case ir.OpLoad, ir.OpStore:
		regionIdx, err2 := r.uvarint()
		if err2 != nil {
			return ir.Statement{}, nil, 0,err2
		}
		var ok bool
		region, ok = s.pool.lookup(regionIdx)
		if !ok {
			return ir.Statement{}, nil, 0,perr.New(perr.KindCorruptBitcode, "region pool index %d out of range", regionIdx)
		}
		endByte, err2 := r.byte()
		if err2 != nil {
			return ir.Statement{}, nil, 0,err2
		}
		endianness = ir.Endianness(endByte)
		bytes, err = r.uvarint()
		if err != nil {
			return ir.Statement{}, nil, 0,err
		}
	case ir.OpInitialize:
		nameIdx, err2 := r.uvarint()
		if err2 != nil {
			return ir.Statement{}, nil, 0,err2
		}
		var ok bool
		initName, ok = s.pool.lookup(nameIdx)
		if !ok {
			return ir.Statement{}, nil, 0,perr.New(perr.KindCorruptBitcode, "string pool index %d out of range", nameIdx)
		}
		initBits, err = r.uvarint()
		if err != nil {
			return ir.Statement{}, nil, 0,err
		}
	}

	op := ir.Compose(ir.Fields[ir.Rvalue]{
		Tag: tag, A: a, B: b, C: c,
		TargetBits: uint(targetBits), Region: region, Endianness: endianness,
		Bytes: uint(bytes), InitName: initName, InitBits: uint(initBits),
	})

	stmt := ir.NewInternalStatement(assignee, op)
	if tag == ir.OpCall {
		if addr, ok := a.Value(); ok {
			ct := CallTargetAddress(addr)
			return stmt, &ct, r.pos - pos, nil
		}
	}
	return stmt, nil, r.pos - pos, nil
}
