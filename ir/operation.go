package ir

// Operation is the algebraic tag over operand type V (spec §3). A single
// generic type parameterises every analysis pass that needs to lift
// Operation<Rvalue> into Operation<A> for some abstract domain A, instead of
// duplicating the variant list per domain.
type Operation[V any] struct {
	tag  OpTag
	a, b V // binary/comparison/select-full/phi-first operands

	// Width-changing / memory / call fields.
	targetBits uint // ZeroExtend, SignExtend: target width. Select: bit offset.
	region     string
	endianness Endianness
	bytes      uint

	// Initialize
	initName string
	initBits uint

	// Phi always carries three operands (spec §3); unused slots are filled
	// by the caller with the zero Rvalue (Undefined) rather than omitted.
	c V
}

type OpTag uint8

const (
	OpAdd OpTag = iota
	OpSubtract
	OpMultiply
	OpDivideUnsigned
	OpDivideSigned
	OpModulo
	OpShiftLeft
	OpShiftRightUnsigned
	OpShiftRightSigned
	OpAnd
	OpInclusiveOr
	OpExclusiveOr

	OpEqual
	OpLessUnsigned
	OpLessSigned
	OpLessOrEqualUnsigned
	OpLessOrEqualSigned

	OpZeroExtend
	OpSignExtend
	OpSelect

	OpMove
	OpInitialize
	OpCall
	OpPhi
	OpLoad
	OpStore
)

func (t OpTag) String() string {
	switch t {
	case OpAdd:
		return "Add"
	case OpSubtract:
		return "Subtract"
	case OpMultiply:
		return "Multiply"
	case OpDivideUnsigned:
		return "DivideUnsigned"
	case OpDivideSigned:
		return "DivideSigned"
	case OpModulo:
		return "Modulo"
	case OpShiftLeft:
		return "ShiftLeft"
	case OpShiftRightUnsigned:
		return "ShiftRightUnsigned"
	case OpShiftRightSigned:
		return "ShiftRightSigned"
	case OpAnd:
		return "And"
	case OpInclusiveOr:
		return "InclusiveOr"
	case OpExclusiveOr:
		return "ExclusiveOr"
	case OpEqual:
		return "Equal"
	case OpLessUnsigned:
		return "LessUnsigned"
	case OpLessSigned:
		return "LessSigned"
	case OpLessOrEqualUnsigned:
		return "LessOrEqualUnsigned"
	case OpLessOrEqualSigned:
		return "LessOrEqualSigned"
	case OpZeroExtend:
		return "ZeroExtend"
	case OpSignExtend:
		return "SignExtend"
	case OpSelect:
		return "Select"
	case OpMove:
		return "Move"
	case OpInitialize:
		return "Initialize"
	case OpCall:
		return "Call"
	case OpPhi:
		return "Phi"
	case OpLoad:
		return "Load"
	case OpStore:
		return "Store"
	default:
		return "Operation(?)"
	}
}

// Endianness of a Load/Store.
type Endianness uint8

const (
	LittleEndian Endianness = iota
	BigEndian
)

// Tag returns the operation's variant.
func (o Operation[V]) Tag() OpTag { return o.tag }

func binop[V any](tag OpTag, a, b V) Operation[V] { return Operation[V]{tag: tag, a: a, b: b} }

func Add[V any](a, b V) Operation[V]                   { return binop(OpAdd, a, b) }
func Subtract[V any](a, b V) Operation[V]              { return binop(OpSubtract, a, b) }
func Multiply[V any](a, b V) Operation[V]              { return binop(OpMultiply, a, b) }
func DivideUnsigned[V any](a, b V) Operation[V]        { return binop(OpDivideUnsigned, a, b) }
func DivideSigned[V any](a, b V) Operation[V]          { return binop(OpDivideSigned, a, b) }
func Modulo[V any](a, b V) Operation[V]                { return binop(OpModulo, a, b) }
func ShiftLeft[V any](a, b V) Operation[V]             { return binop(OpShiftLeft, a, b) }
func ShiftRightUnsigned[V any](a, b V) Operation[V]    { return binop(OpShiftRightUnsigned, a, b) }
func ShiftRightSigned[V any](a, b V) Operation[V]      { return binop(OpShiftRightSigned, a, b) }
func And[V any](a, b V) Operation[V]                   { return binop(OpAnd, a, b) }
func InclusiveOr[V any](a, b V) Operation[V]           { return binop(OpInclusiveOr, a, b) }
func ExclusiveOr[V any](a, b V) Operation[V]           { return binop(OpExclusiveOr, a, b) }
func Equal[V any](a, b V) Operation[V]                 { return binop(OpEqual, a, b) }
func LessUnsigned[V any](a, b V) Operation[V]          { return binop(OpLessUnsigned, a, b) }
func LessSigned[V any](a, b V) Operation[V]            { return binop(OpLessSigned, a, b) }
func LessOrEqualUnsigned[V any](a, b V) Operation[V]   { return binop(OpLessOrEqualUnsigned, a, b) }
func LessOrEqualSigned[V any](a, b V) Operation[V]     { return binop(OpLessOrEqualSigned, a, b) }

// ZeroExtend widens v to targetBits, filling with zeros.
func ZeroExtend[V any](targetBits uint, v V) Operation[V] {
	return Operation[V]{tag: OpZeroExtend, a: v, targetBits: targetBits}
}

// SignExtend widens v to targetBits, sign-extending from its current width.
func SignExtend[V any](targetBits uint, v V) Operation[V] {
	return Operation[V]{tag: OpSignExtend, a: v, targetBits: targetBits}
}

// Select overwrites the bits [offset, offset+size(insert)) of full with
// insert.
func Select[V any](offset uint, full, insert V) Operation[V] {
	return Operation[V]{tag: OpSelect, a: full, b: insert, targetBits: offset}
}

// Move is a plain transfer.
func Move[V any](v V) Operation[V] { return Operation[V]{tag: OpMove, a: v} }

// Initialize declares a live-in variable with an abstract initial value.
func Initialize[V any](name string, bits uint) Operation[V] {
	return Operation[V]{tag: OpInitialize, initName: name, initBits: bits}
}

// Call is side-effecting; its assignee must be Undefined.
func Call[V any](v V) Operation[V] { return Operation[V]{tag: OpCall, a: v} }

// Phi is an SSA merge of exactly three operands; callers fill unused slots
// with the zero value of V (Undefined, for Operation[Rvalue]).
func Phi[V any](a, b, c V) Operation[V] {
	return Operation[V]{tag: OpPhi, a: a, b: b, c: c}
}

// Load reads bytes bytes from region at address, in the given endianness.
func Load[V any](region string, endianness Endianness, bytes uint, address V) Operation[V] {
	return Operation[V]{tag: OpLoad, region: region, endianness: endianness, bytes: bytes, a: address}
}

// Store writes value to region at address.
func Store[V any](region string, endianness Endianness, bytes uint, address, value V) Operation[V] {
	return Operation[V]{tag: OpStore, region: region, endianness: endianness, bytes: bytes, a: address, b: value}
}

// Operands returns the operation's V-typed arguments in canonical order.
func (o Operation[V]) Operands() []V {
	switch o.tag {
	case OpZeroExtend, OpSignExtend, OpMove, OpCall, OpLoad:
		return []V{o.a}
	case OpSelect, OpStore:
		return []V{o.a, o.b}
	case OpPhi:
		return []V{o.a, o.b, o.c}
	case OpInitialize:
		return nil
	default:
		return []V{o.a, o.b}
	}
}

// TargetBits returns the target_bits field for ZeroExtend/SignExtend, or
// the bit offset for Select.
func (o Operation[V]) TargetBits() uint { return o.targetBits }

// MemoryFields returns the region/endianness/byte-count of a Load or Store.
func (o Operation[V]) MemoryFields() (region string, end Endianness, bytes uint) {
	return o.region, o.endianness, o.bytes
}

// InitializeFields returns the name/bits of an Initialize operation.
func (o Operation[V]) InitializeFields() (name string, bits uint) {
	return o.initName, o.initBits
}

// PhiOperands returns Phi's three operands.
func (o Operation[V]) PhiOperands() []V { return []V{o.a, o.b, o.c} }

// A returns the first (or only) operand; defined for every variant that has
// one.
func (o Operation[V]) A() V { return o.a }

// B returns the second operand where present (binary ops, Select's insert
// value, Store's value).
func (o Operation[V]) B() V { return o.b }

// Lift rebuilds op changing its operand type from V to W via f. It is a
// pure, total functor: Lift(op, identity) == op.
func Lift[V, W any](op Operation[V], f func(V) W) Operation[W] {
	out := Operation[W]{tag: op.tag, targetBits: op.targetBits, region: op.region, endianness: op.endianness, bytes: op.bytes, initName: op.initName, initBits: op.initBits}
	switch op.tag {
	case OpInitialize:
		return out
	case OpPhi:
		out.a, out.b, out.c = f(op.a), f(op.b), f(op.c)
		return out
	case OpZeroExtend, OpSignExtend, OpMove, OpCall, OpLoad:
		out.a = f(op.a)
		return out
	case OpSelect, OpStore:
		out.a, out.b = f(op.a), f(op.b)
		return out
	default:
		if isBinary(op.tag) {
			out.a, out.b = f(op.a), f(op.b)
		}
		return out
	}
}

func isBinary(t OpTag) bool {
	switch t {
	case OpAdd, OpSubtract, OpMultiply, OpDivideUnsigned, OpDivideSigned, OpModulo,
		OpShiftLeft, OpShiftRightUnsigned, OpShiftRightSigned, OpAnd, OpInclusiveOr, OpExclusiveOr,
		OpEqual, OpLessUnsigned, OpLessSigned, OpLessOrEqualUnsigned, OpLessOrEqualSigned:
		return true
	default:
		return false
	}
}

func (o Operation[V]) String() string {
	return o.tag.String()
}

// Fields is the raw field set of an Operation[V], exposed so the bitcode
// encoder can serialize any variant without the generic type needing to
// leak its private layout into package bitcode.
type Fields[V any] struct {
	Tag                  OpTag
	A, B, C              V
	TargetBits           uint
	Region               string
	Endianness           Endianness
	Bytes                uint
	InitName             string
	InitBits             uint
}

// Decompose exposes op's raw fields for encoding.
func Decompose[V any](op Operation[V]) Fields[V] {
	return Fields[V]{
		Tag: op.tag, A: op.a, B: op.b, C: op.c,
		TargetBits: op.targetBits, Region: op.region, Endianness: op.endianness,
		Bytes: op.bytes, InitName: op.initName, InitBits: op.initBits,
	}
}

// Compose rebuilds an Operation[V] from a raw field set, the inverse of
// Decompose. It trusts the caller (the bitcode decoder, which only ever
// feeds it fields it itself wrote) to supply a self-consistent Fields
// value for Tag.
func Compose[V any](f Fields[V]) Operation[V] {
	return Operation[V]{
		tag: f.Tag, a: f.A, b: f.B, c: f.C,
		targetBits: f.TargetBits, region: f.Region, endianness: f.Endianness,
		bytes: f.Bytes, initName: f.InitName, initBits: f.InitBits,
	}
}
