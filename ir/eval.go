package ir

// Execute is the constant evaluator: it computes the concrete result of op
// when every operand is a Constant, or when a short-circuit identity
// applies (x+0=x, x*0=0, x*1=x, 0/y=0, x/1=x, x%1=0, x&0=0, x|0=x, x<<0=x,
// ...). It returns Undefined whenever neither case holds. Arithmetic wraps
// modulo 2^size; division by zero yields Undefined; right shifts by ≥ size
// yield 0 (unsigned) or the sign bit spread to every position (signed).
func Execute(op Operation[Rvalue]) Rvalue {
	switch op.Tag() {
	case OpAdd:
		return evalArith(op.A(), op.B(), func(a, b uint64) uint64 { return a + b },
			isZero, nil)
	case OpSubtract:
		return evalArith(op.A(), op.B(), func(a, b uint64) uint64 { return a - b }, isZero, nil)
	case OpMultiply:
		return evalMultiply(op.A(), op.B())
	case OpDivideUnsigned:
		return evalDivideUnsigned(op.A(), op.B())
	case OpDivideSigned:
		return evalDivideSigned(op.A(), op.B())
	case OpModulo:
		return evalModulo(op.A(), op.B())
	case OpShiftLeft:
		return evalShift(op.A(), op.B(), shiftLeft)
	case OpShiftRightUnsigned:
		return evalShift(op.A(), op.B(), shiftRightUnsigned)
	case OpShiftRightSigned:
		return evalShift(op.A(), op.B(), shiftRightSigned)
	case OpAnd:
		return evalAnd(op.A(), op.B())
	case OpInclusiveOr:
		return evalArith(op.A(), op.B(), func(a, b uint64) uint64 { return a | b }, isZero, nil)
	case OpExclusiveOr:
		// x ^ x is explicitly not simplified (spec §4): only the
		// both-constant path folds.
		a, b := op.A(), op.B()
		av, aok := a.Value()
		bv, bok := b.Value()
		if aok && bok {
			sz, _ := resultSize(a, b)
			return maskedConstant(av^bv, sz)
		}
		return Undefined

	case OpEqual:
		return evalCompare(op.A(), op.B(), func(a, b uint64) bool { return a == b })
	case OpLessUnsigned:
		return evalCompare(op.A(), op.B(), func(a, b uint64) bool { return a < b })
	case OpLessSigned:
		return evalCompareSigned(op.A(), op.B(), func(a, b int64) bool { return a < b })
	case OpLessOrEqualUnsigned:
		return evalCompare(op.A(), op.B(), func(a, b uint64) bool { return a <= b })
	case OpLessOrEqualSigned:
		return evalCompareSigned(op.A(), op.B(), func(a, b int64) bool { return a <= b })

	case OpZeroExtend:
		v := op.A()
		if val, ok := v.Value(); ok {
			return NewConstant(val, op.TargetBits())
		}
		return Undefined

	case OpSignExtend:
		v := op.A()
		val, ok := v.Value()
		sz, szOk := v.Size()
		if !ok || !szOk || sz == 0 {
			return Undefined
		}
		return NewConstant(signExtend(val, sz, op.TargetBits()), op.TargetBits())

	case OpSelect:
		full, insert := op.A(), op.B()
		fv, fok := full.Value()
		iv, iok := insert.Value()
		isz, iszOk := insert.Size()
		if fok && iok && iszOk {
			off := op.TargetBits()
			mask := maskFor(isz)
			cleared := fv &^ (mask << off)
			return maskedConstant(cleared|((iv&mask)<<off), mustSize(full))
		}
		return Undefined

	case OpMove:
		return op.A()

	default:
		return Undefined
	}
}

func mustSize(v Rvalue) uint {
	sz, _ := v.Size()
	return sz
}

func resultSize(a, b Rvalue) (uint, bool) {
	asz, aok := a.Size()
	bsz, bok := b.Size()
	switch {
	case aok && bok:
		if bsz > asz {
			return bsz, true
		}
		return asz, true
	case aok:
		return asz, true
	case bok:
		return bsz, true
	default:
		return 0, false
	}
}

func maskFor(bits uint) uint64 {
	if bits == 0 {
		return 0
	}
	if bits >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<bits - 1
}

func maskedConstant(value uint64, bits uint) Rvalue {
	return NewConstant(value, bits)
}

func isZero(v Rvalue) bool {
	val, ok := v.Value()
	return ok && val == 0
}

func isOne(v Rvalue, bits uint) bool {
	val, ok := v.Value()
	return ok && (val&maskFor(bits)) == 1
}

// evalArith applies f to two constants, with optional short-circuit
// identities: shortB(b)==true means b is a right identity (result is a,
// e.g. x+0, x-0, x|0); shortA(a)==true means a is a left identity (result
// is b). Not every operation has both; callers pass nil for the one that
// doesn't apply.
func evalArith(a, b Rvalue, f func(uint64, uint64) uint64, shortB, shortA func(Rvalue) bool) Rvalue {
	av, aok := a.Value()
	bv, bok := b.Value()
	if aok && bok {
		sz, _ := resultSize(a, b)
		return maskedConstant(f(av, bv), sz)
	}
	if shortB != nil && shortB(b) && !a.IsUndefined() {
		return a
	}
	if shortA != nil && shortA(a) && !b.IsUndefined() {
		return b
	}
	return Undefined
}

func evalMultiply(a, b Rvalue) Rvalue {
	av, aok := a.Value()
	bv, bok := b.Value()
	if aok && bok {
		sz, _ := resultSize(a, b)
		return maskedConstant(av*bv, sz)
	}
	sz, szOk := resultSize(a, b)
	if isZero(a) || isZero(b) {
		if szOk {
			return NewConstant(0, sz)
		}
		return NewConstant(0, 1)
	}
	if szOk && isOne(a, sz) && !b.IsUndefined() {
		return b
	}
	if szOk && isOne(b, sz) && !a.IsUndefined() {
		return a
	}
	return Undefined
}

// evalAnd folds x & 0 = 0 in addition to the both-constant case; unlike the
// other binary identities this one produces a new zero constant rather than
// returning one of the operands unchanged.
func evalAnd(a, b Rvalue) Rvalue {
	av, aok := a.Value()
	bv, bok := b.Value()
	if aok && bok {
		sz, _ := resultSize(a, b)
		return maskedConstant(av&bv, sz)
	}
	sz, szOk := resultSize(a, b)
	if szOk && (isZero(a) || isZero(b)) {
		return NewConstant(0, sz)
	}
	return Undefined
}

// evalDivideUnsigned computes the unsigned quotient a/b, modulo 2^size.
// Division by zero yields Undefined. The quotient, not the product, is
// authoritative here regardless of what any particular reference
// implementation's fast path happens to compute.
func evalDivideUnsigned(a, b Rvalue) Rvalue {
	bv, bok := b.Value()
	if bok && bv == 0 {
		return Undefined
	}
	av, aok := a.Value()
	if aok && bok {
		sz, _ := resultSize(a, b)
		return maskedConstant(av/bv, sz)
	}
	sz, szOk := resultSize(a, b)
	if szOk && isZero(a) {
		return NewConstant(0, sz)
	}
	if szOk && isOne(b, sz) && !a.IsUndefined() {
		return a
	}
	return Undefined
}

func evalDivideSigned(a, b Rvalue) Rvalue {
	bv, bok := b.Value()
	if bok && bv == 0 {
		return Undefined
	}
	av, aok := a.Value()
	sz, szOk := resultSize(a, b)
	if aok && bok && szOk {
		as := toSigned(av, sz)
		bs := toSigned(bv, sz)
		return maskedConstant(uint64(as/bs), sz)
	}
	if szOk && isZero(a) {
		return NewConstant(0, sz)
	}
	if szOk && isOne(b, sz) && !a.IsUndefined() {
		return a
	}
	return Undefined
}

func evalModulo(a, b Rvalue) Rvalue {
	bv, bok := b.Value()
	if bok && bv == 0 {
		return Undefined
	}
	av, aok := a.Value()
	sz, szOk := resultSize(a, b)
	if aok && bok && szOk {
		return maskedConstant(av%bv, sz)
	}
	if szOk && isOne(b, sz) {
		return NewConstant(0, sz)
	}
	return Undefined
}

func shiftLeft(v uint64, n uint, size uint) uint64 {
	if n >= size {
		return 0
	}
	return v << n
}

func shiftRightUnsigned(v uint64, n uint, size uint) uint64 {
	if n >= size {
		return 0
	}
	return v >> n
}

func shiftRightSigned(v uint64, n uint, size uint) uint64 {
	signed := toSigned(v, size)
	if n >= size {
		if signed < 0 {
			return maskFor(size)
		}
		return 0
	}
	shifted := signed >> n
	return uint64(shifted) & maskFor(size)
}

func evalShift(a, n Rvalue, f func(v uint64, n uint, size uint) uint64) Rvalue {
	av, aok := a.Value()
	nv, nok := n.Value()
	sz, szOk := a.Size()
	if aok && nok && szOk {
		return maskedConstant(f(av, uint(nv), sz), sz)
	}
	if szOk && nok && nv == 0 && !a.IsUndefined() {
		return a
	}
	return Undefined
}

func evalCompare(a, b Rvalue, f func(uint64, uint64) bool) Rvalue {
	av, aok := a.Value()
	bv, bok := b.Value()
	if aok && bok {
		return NewBit(f(av, bv))
	}
	return Undefined
}

func evalCompareSigned(a, b Rvalue, f func(int64, int64) bool) Rvalue {
	av, aok := a.Value()
	bv, bok := b.Value()
	asz, aszOk := a.Size()
	bsz, bszOk := b.Size()
	if aok && bok && aszOk && bszOk {
		return NewBit(f(toSigned(av, asz), toSigned(bv, bsz)))
	}
	return Undefined
}

func toSigned(v uint64, bits uint) int64 {
	if bits == 0 || bits >= 64 {
		return int64(v)
	}
	signBit := uint64(1) << (bits - 1)
	if v&signBit != 0 {
		return int64(v) - int64(uint64(1)<<bits)
	}
	return int64(v)
}

func signExtend(v uint64, fromBits, toBits uint) uint64 {
	s := toSigned(v, fromBits)
	return uint64(s) & maskFor(toBits)
}
