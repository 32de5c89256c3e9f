package ir

import "github.com/panopticon-re/panopticon/ir/perr"

// SanityCheck applies the §3 structural invariants to s and returns a typed
// perr.Error describing the first violation found, or nil if s is
// well-formed. It never inspects values, only declared sizes, so it is
// total and cheap enough to run on every statement the bitcode store
// decodes.
func (s Statement) SanityCheck() error {
	assigneeSize, assigneeDefined := s.Assignee.Size()

	operandSize := func(v Rvalue) (uint, bool) { return v.Size() }

	checkNonZero := func(v Rvalue) error {
		if sz, ok := operandSize(v); ok && sz == 0 {
			return perr.New(perr.KindOperandSizeZero, "operand %s has size zero", v)
		}
		return nil
	}

	if assigneeDefined && assigneeSize == 0 {
		return perr.New(perr.KindOperandSizeZero, "assignee %s has size zero", s.Assignee)
	}

	switch s.Op.Tag() {
	case OpAdd, OpSubtract, OpMultiply, OpDivideUnsigned, OpDivideSigned, OpModulo,
		OpShiftLeft, OpShiftRightUnsigned, OpShiftRightSigned, OpAnd, OpInclusiveOr, OpExclusiveOr:
		a, b := s.Op.A(), s.Op.B()
		if err := checkNonZero(a); err != nil {
			return err
		}
		if err := checkNonZero(b); err != nil {
			return err
		}
		aSize, aOk := operandSize(a)
		bSize, bOk := operandSize(b)
		if aOk && bOk && aSize != bSize {
			return perr.New(perr.KindSizeMismatch, "%s: operand sizes differ (%d vs %d)", s.Op, aSize, bSize)
		}
		want := aSize
		if bOk && (!aOk || bSize > aSize) {
			want = bSize
		}
		if !assigneeDefined || assigneeSize != want {
			return perr.New(perr.KindAssigneeSizeMismatch, "%s: assignee size %v does not match operand size %d", s.Op, s.Assignee, want)
		}

	case OpEqual, OpLessUnsigned, OpLessSigned, OpLessOrEqualUnsigned, OpLessOrEqualSigned:
		a, b := s.Op.A(), s.Op.B()
		if err := checkNonZero(a); err != nil {
			return err
		}
		if err := checkNonZero(b); err != nil {
			return err
		}
		aSize, aOk := operandSize(a)
		bSize, bOk := operandSize(b)
		if aOk && bOk && aSize != bSize {
			return perr.New(perr.KindSizeMismatch, "%s: operand sizes differ (%d vs %d)", s.Op, aSize, bSize)
		}
		if !assigneeDefined || assigneeSize != 1 {
			return perr.New(perr.KindAssigneeSizeMismatch, "%s: assignee must have size 1", s.Op)
		}

	case OpZeroExtend, OpSignExtend:
		if err := checkNonZero(s.Op.A()); err != nil {
			return err
		}
		if !assigneeDefined || assigneeSize != s.Op.TargetBits() {
			return perr.New(perr.KindAssigneeSizeMismatch, "%s: assignee size %v does not match target_bits %d", s.Op, s.Assignee, s.Op.TargetBits())
		}

	case OpSelect:
		full, insert := s.Op.A(), s.Op.B()
		if err := checkNonZero(full); err != nil {
			return err
		}
		if err := checkNonZero(insert); err != nil {
			return err
		}
		fullSize, fullOk := operandSize(full)
		insertSize, insertOk := operandSize(insert)
		if !assigneeDefined || !fullOk || assigneeSize != fullSize {
			return perr.New(perr.KindAssigneeSizeMismatch, "select: assignee size %v does not match full operand size %v", s.Assignee, fullSize)
		}
		if insertOk && s.Op.TargetBits()+insertSize > fullSize {
			return perr.New(perr.KindSelectOutOfRange, "select: offset %d + insert size %d exceeds full size %d", s.Op.TargetBits(), insertSize, fullSize)
		}

	case OpMove:
		if err := checkNonZero(s.Op.A()); err != nil {
			return err
		}

	case OpInitialize:
		// No operand to check; assignee size already validated above.

	case OpCall:
		if !s.Assignee.IsUndefined() {
			return perr.New(perr.KindCallMustBeUndefined, "call: assignee must be Undefined")
		}

	case OpPhi:
		if !assigneeDefined {
			return perr.New(perr.KindPhiSizeMismatch, "phi: assignee size must be defined")
		}
		for _, v := range s.Op.PhiOperands() {
			if v.IsUndefined() {
				continue
			}
			if err := checkNonZero(v); err != nil {
				return err
			}
			if sz, ok := operandSize(v); ok && sz != assigneeSize {
				return perr.New(perr.KindPhiSizeMismatch, "phi: operand %s size %d does not match assignee size %d", v, sz, assigneeSize)
			}
		}

	case OpLoad:
		_, _, bytes := s.Op.MemoryFields()
		if bytes == 0 || bytes%8 != 0 {
			return perr.New(perr.KindMemoryNotByteAligned, "load: byte count %d is not a nonzero multiple of 8", bytes)
		}
		if !assigneeDefined || assigneeSize != bytes*8 {
			return perr.New(perr.KindMemorySizeZero, "load: assignee size %v does not match %d bytes", s.Assignee, bytes)
		}

	case OpStore:
		_, _, bytes := s.Op.MemoryFields()
		if bytes == 0 || bytes%8 != 0 {
			return perr.New(perr.KindMemoryNotByteAligned, "store: byte count %d is not a nonzero multiple of 8", bytes)
		}
		value := s.Op.B()
		if err := checkNonZero(value); err != nil {
			return err
		}
		if sz, ok := operandSize(value); ok && sz != bytes*8 {
			return perr.New(perr.KindMemorySizeZero, "store: value size %d does not match %d bytes", sz, bytes)
		}
	}

	return nil
}
