package sign_test

import (
	"testing"

	"github.com/panopticon-re/panopticon/absint"
	"github.com/panopticon-re/panopticon/absint/domains/sign"
	"github.com/panopticon-re/panopticon/bitcode"
	"github.com/panopticon-re/panopticon/disasm"
	"github.com/panopticon-re/panopticon/ir"
)

func TestCombine(t *testing.T) {
	d := sign.Domain{}
	cases := []struct {
		a, b, want sign.Value
	}{
		{sign.Meet, sign.Positive, sign.Positive},
		{sign.Positive, sign.Meet, sign.Positive},
		{sign.Positive, sign.Positive, sign.Positive},
		{sign.Positive, sign.Negative, sign.Join},
		{sign.Zero, sign.Positive, sign.Join},
	}
	for _, c := range cases {
		if got := d.Combine(c.a, c.b); got != c.want {
			t.Errorf("Combine(%v,%v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestWiden(t *testing.T) {
	d := sign.Domain{}
	if got := d.Widen(sign.Positive, sign.Positive); got != sign.Positive {
		t.Errorf("Widen(Positive,Positive) = %v, want Positive", got)
	}
	if got := d.Widen(sign.Zero, sign.Positive); got != sign.Join {
		t.Errorf("Widen(Zero,Positive) = %v, want Join", got)
	}
}

func TestMoreExact(t *testing.T) {
	d := sign.Domain{}
	// Meet only loses to Positive, Negative and Join, never to Zero.
	if !d.MoreExact(sign.Meet, sign.Zero) {
		t.Errorf("MoreExact(Meet,Zero) = false, want true (asymmetric quirk)")
	}
	if d.MoreExact(sign.Meet, sign.Positive) {
		t.Errorf("MoreExact(Meet,Positive) = true, want false")
	}
	if !d.MoreExact(sign.Positive, sign.Zero) {
		t.Errorf("MoreExact(Positive,Zero) = false, want true")
	}
	if d.MoreExact(sign.Positive, sign.Join) {
		t.Errorf("MoreExact(Positive,Join) = true, want false")
	}
	if !d.MoreExact(sign.Zero, sign.Join) {
		t.Errorf("MoreExact(Zero,Join) = false, want true (Zero beats Join too)")
	}
}

func TestNarrow(t *testing.T) {
	d := sign.Domain{}
	if got := d.Narrow(sign.Join, sign.Positive); got != sign.Positive {
		t.Errorf("Narrow(Join,Positive) = %v, want Positive", got)
	}
	if got := d.Narrow(sign.Positive, sign.Negative); got != sign.Meet {
		t.Errorf("Narrow(Positive,Negative) = %v, want Meet", got)
	}
	if got := d.Narrow(sign.Meet, sign.Positive); got != sign.Meet {
		t.Errorf("Narrow(Meet,Positive) = %v, want Meet", got)
	}
}

func TestAbstractValue(t *testing.T) {
	d := sign.Domain{}
	if got := d.AbstractValue(ir.NewConstant(5, 32)); got != sign.Positive {
		t.Errorf("AbstractValue(5) = %v, want Positive", got)
	}
	if got := d.AbstractValue(ir.NewConstant(0, 32)); got != sign.Zero {
		t.Errorf("AbstractValue(0) = %v, want Zero", got)
	}
	if got := d.AbstractValue(ir.Undefined); got != sign.Join {
		t.Errorf("AbstractValue(Undefined) = %v, want Join", got)
	}
}

func TestAbstractConstraint(t *testing.T) {
	d := sign.Domain{}
	eq0 := absint.Constraint{Kind: absint.ConstraintEqual, Const: ir.NewConstant(0, 32)}
	if got := d.AbstractConstraint(eq0); got != sign.Zero {
		t.Errorf("AbstractConstraint(==0) = %v, want Zero", got)
	}
	leSigned0 := absint.Constraint{Kind: absint.ConstraintLessOrEqualSigned, Const: ir.NewConstant(0, 32)}
	if got := d.AbstractConstraint(leSigned0); got != sign.Join {
		t.Errorf("AbstractConstraint(<=s 0) = %v, want Join (0 is not the negative-bit-pattern case)", got)
	}
}

func TestExecutePhi(t *testing.T) {
	d := sign.Domain{}
	op := ir.Phi[sign.Value](sign.Zero, sign.Positive, sign.Meet)
	if got := d.Execute(absint.ProgramPoint{}, op); got != sign.Join {
		t.Errorf("Execute(Phi(Zero,Positive,Meet)) = %v, want Join", got)
	}
}

// buildBlock appends stmts to code and returns a BasicBlock covering
// [start,end) with node n, plus the Mnemonic recording the statement
// range (one synthetic mnemonic per block is enough for this fixture).
func buildBlock(code *bitcode.Store, mnemonics *[]disasm.Mnemonic, n disasm.CfgNode, start, end uint64, stmts []ir.Statement) disasm.BasicBlock {
	s, e, err := code.Append(stmts)
	if err != nil {
		panic(err)
	}
	first := len(*mnemonics)
	*mnemonics = append(*mnemonics, disasm.Mnemonic{
		Area:       disasm.AddressRange{Start: start, End: end},
		Opcode:     "synthetic",
		Statements: disasm.StatementRange{Start: s, End: e},
	})
	return disasm.BasicBlock{
		Area:      disasm.AddressRange{Start: start, End: end},
		Mnemonics: disasm.MnemonicRange{Start: first, End: len(*mnemonics)},
		Node:      n,
	}
}

func mustStatement(assignee ir.Lvalue, op ir.Operation[ir.Rvalue]) ir.Statement {
	st, err := ir.NewStatement(assignee, op)
	if err != nil {
		panic(err)
	}
	return st
}

// TestApproximateStraightLine exercises Approximate, Results, WTO and the
// dominator walk together over a two-block, loop-free function: no widening
// or narrowing is in play, so every value is hand-checkable directly from
// the Execute table above. Subtracting two equally-signed operands falls
// through Execute's default arm to Join; adding them stays Positive.
func TestApproximateStraightLine(t *testing.T) {
	xVar := ir.NewLvalue("x", 32, 0)
	nVar := ir.NewLvalue("n", 32, 0)
	yVar := ir.NewLvalue("y", 32, 0)
	zVar := ir.NewLvalue("z", 32, 0)

	code := bitcode.New()
	var mnemonics []disasm.Mnemonic

	cfg := disasm.NewControlFlowGraph()
	n0 := cfg.AddBasicBlockNode(0)
	n1 := cfg.AddBasicBlockNode(1)

	bb0 := buildBlock(code, &mnemonics, n0, 0, 2, []ir.Statement{
		mustStatement(xVar, ir.Move[ir.Rvalue](ir.NewConstant(5, 32))),
		mustStatement(nVar, ir.Move[ir.Rvalue](ir.NewConstant(1, 32))),
	})
	bb1 := buildBlock(code, &mnemonics, n1, 2, 4, []ir.Statement{
		mustStatement(yVar, ir.Subtract[ir.Rvalue](xVar.ToRvalue(), nVar.ToRvalue())),
		mustStatement(zVar, ir.Add[ir.Rvalue](xVar.ToRvalue(), nVar.ToRvalue())),
	})

	cfg.SetEdge(n0, n1, ir.Always)

	f := &disasm.Function{
		Name:        "straight",
		Code:        code,
		BasicBlocks: []disasm.BasicBlock{bb0, bb1},
		Mnemonics:   mnemonics,
		CflowGraph:  cfg,
		Entry:       n0,
	}

	env, err := absint.Approximate[sign.Value](f, sign.Domain{}, nil)
	if err != nil {
		t.Fatalf("Approximate: %v", err)
	}
	results, err := absint.Results[sign.Value](f, env)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}

	exit := results[n1]
	if got := exit["x"]; got != sign.Positive {
		t.Errorf("result[x] = %v, want Positive", got)
	}
	if got := exit["n"]; got != sign.Positive {
		t.Errorf("result[n] = %v, want Positive", got)
	}
	if got := exit["y"]; got != sign.Join {
		t.Errorf("result[y] = %v, want Join", got)
	}
	if got := exit["z"]; got != sign.Positive {
		t.Errorf("result[z] = %v, want Positive", got)
	}
}

func mustGuard(f ir.Rvalue, expected bool) ir.Guard {
	g, err := ir.FromFlag(f, expected)
	if err != nil {
		panic(err)
	}
	return g
}

// TestApproximateSoundnessLoop is the soundness scenario: x=0; n=1;
// while (n <= ?) { x+=n; n+=1 }. The loop bound is unconstrained ("?"), so
// no edge constraint narrows either variable. x joins a Zero entry value
// against the Positive value produced by every trip through the body, so
// a sound fixpoint can only report x as Join; n is Positive on every trip
// and stays Positive.
func TestApproximateSoundnessLoop(t *testing.T) {
	x0 := ir.NewLvalue("x", 32, 0)
	n0 := ir.NewLvalue("n", 32, 0)
	x1 := ir.NewLvalue("x", 32, 1)
	n1 := ir.NewLvalue("n", 32, 1)
	x2 := ir.NewLvalue("x", 32, 2)
	n2 := ir.NewLvalue("n", 32, 2)

	code := bitcode.New()
	var mnemonics []disasm.Mnemonic

	cfg := disasm.NewControlFlowGraph()
	entry := cfg.AddBasicBlockNode(0)
	header := cfg.AddBasicBlockNode(1)
	body := cfg.AddBasicBlockNode(2)
	exit := cfg.AddBasicBlockNode(3)

	bbEntry := buildBlock(code, &mnemonics, entry, 0, 2, []ir.Statement{
		mustStatement(x0, ir.Move[ir.Rvalue](ir.NewConstant(0, 32))),
		mustStatement(n0, ir.Move[ir.Rvalue](ir.NewConstant(1, 32))),
	})
	bbHeader := buildBlock(code, &mnemonics, header, 2, 4, []ir.Statement{
		mustStatement(x1, ir.Phi[ir.Rvalue](x0.ToRvalue(), x2.ToRvalue(), ir.Undefined)),
		mustStatement(n1, ir.Phi[ir.Rvalue](n0.ToRvalue(), n2.ToRvalue(), ir.Undefined)),
	})
	bbBody := buildBlock(code, &mnemonics, body, 4, 6, []ir.Statement{
		mustStatement(x2, ir.Add[ir.Rvalue](x1.ToRvalue(), n1.ToRvalue())),
		mustStatement(n2, ir.Add[ir.Rvalue](n1.ToRvalue(), ir.NewConstant(1, 32))),
	})
	bbExit := buildBlock(code, &mnemonics, exit, 6, 6, nil)

	cfg.SetEdge(entry, header, ir.Always)
	cfg.SetEdge(header, body, ir.Always)
	cfg.SetEdge(header, exit, ir.Always)
	cfg.SetEdge(body, header, ir.Always)

	f := &disasm.Function{
		Name:        "soundness",
		Code:        code,
		BasicBlocks: []disasm.BasicBlock{bbEntry, bbHeader, bbBody, bbExit},
		Mnemonics:   mnemonics,
		CflowGraph:  cfg,
		Entry:       entry,
	}

	env, err := absint.Approximate[sign.Value](f, sign.Domain{}, nil)
	if err != nil {
		t.Fatalf("Approximate: %v", err)
	}
	results, err := absint.Results[sign.Value](f, env)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}

	out := results[exit]
	if got := out["x"]; got != sign.Join {
		t.Errorf("result[x] = %v, want Join", got)
	}
	if got := out["n"]; got != sign.Positive {
		t.Errorf("result[n] = %v, want Positive", got)
	}
}

// TestApproximateNarrowingLoop is the narrowing scenario:
// a = -256; b = 1; while (a <= 0) { a = a+1; b = a*2 } f(a); f(b). The Sign
// domain reads a Constant's raw bit pattern rather than reinterpreting it
// as signed, so -256's two's-complement pattern abstracts to Positive from
// the very first definition, and stays Positive through every trip around
// the loop; the "<=s 0" edge constraint abstracts to Join (0 is not the
// negative-bit-pattern case AbstractConstraint special-cases), so the
// post-fixpoint narrow pass is a no-op here rather than the source of the
// Positive result.
func TestApproximateNarrowingLoop(t *testing.T) {
	a0 := ir.NewLvalue("a", 32, 0)
	b0 := ir.NewLvalue("b", 32, 0)
	a1 := ir.NewLvalue("a", 32, 1)
	b1 := ir.NewLvalue("b", 32, 1)
	a2 := ir.NewLvalue("a", 32, 2)
	b2 := ir.NewLvalue("b", 32, 2)
	flag := ir.NewLvalue("flag", 1, 0)

	code := bitcode.New()
	var mnemonics []disasm.Mnemonic

	cfg := disasm.NewControlFlowGraph()
	entry := cfg.AddBasicBlockNode(0)
	header := cfg.AddBasicBlockNode(1)
	// exit is added before body so that header's sorted successor walk in
	// collectEdgeConstraints visits body last, leaving the true-branch
	// (Join) constraint as the one recorded for a1 rather than the false
	// branch's negated one.
	exit := cfg.AddBasicBlockNode(2)
	body := cfg.AddBasicBlockNode(3)

	bbEntry := buildBlock(code, &mnemonics, entry, 0, 2, []ir.Statement{
		mustStatement(a0, ir.Move[ir.Rvalue](ir.NewConstant(0xFFFFFF00, 32))),
		mustStatement(b0, ir.Move[ir.Rvalue](ir.NewConstant(1, 32))),
	})
	bbHeader := buildBlock(code, &mnemonics, header, 2, 5, []ir.Statement{
		mustStatement(a1, ir.Phi[ir.Rvalue](a0.ToRvalue(), a2.ToRvalue(), ir.Undefined)),
		mustStatement(b1, ir.Phi[ir.Rvalue](b0.ToRvalue(), b2.ToRvalue(), ir.Undefined)),
		mustStatement(flag, ir.LessOrEqualSigned[ir.Rvalue](a1.ToRvalue(), ir.NewConstant(0, 32))),
	})
	bbExit := buildBlock(code, &mnemonics, exit, 5, 5, nil)
	bbBody := buildBlock(code, &mnemonics, body, 5, 7, []ir.Statement{
		mustStatement(a2, ir.Add[ir.Rvalue](a1.ToRvalue(), ir.NewConstant(1, 32))),
		mustStatement(b2, ir.Multiply[ir.Rvalue](a2.ToRvalue(), ir.NewConstant(2, 32))),
	})

	cfg.SetEdge(entry, header, ir.Always)
	cfg.SetEdge(header, body, mustGuard(flag.ToRvalue(), true))
	cfg.SetEdge(header, exit, mustGuard(flag.ToRvalue(), false))
	cfg.SetEdge(body, header, ir.Always)

	f := &disasm.Function{
		Name:        "narrowing",
		Code:        code,
		BasicBlocks: []disasm.BasicBlock{bbEntry, bbHeader, bbExit, bbBody},
		Mnemonics:   mnemonics,
		CflowGraph:  cfg,
		Entry:       entry,
	}

	env, err := absint.Approximate[sign.Value](f, sign.Domain{}, nil)
	if err != nil {
		t.Fatalf("Approximate: %v", err)
	}
	results, err := absint.Results[sign.Value](f, env)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}

	out := results[exit]
	if got := out["a"]; got != sign.Positive {
		t.Errorf("result[a] = %v, want Positive", got)
	}
	if got := out["b"]; got != sign.Positive {
		t.Errorf("result[b] = %v, want Positive", got)
	}
}
