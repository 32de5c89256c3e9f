package avr_test

import (
	"testing"

	"github.com/panopticon-re/panopticon/arch/avr"
	"github.com/panopticon-re/panopticon/disasm"
)

// loopBody is the §8 scenario 1 fixture: lpm/adiw/st/cpi/cpc/brne looping
// over a flash-to-ram copy, falling through into a three-instruction tail
// that runs off the end of the region.
var loopBody = []byte{
	0xC8, 0x95, 0x31, 0x96, 0x0D, 0x92, 0xA2, 0x36, 0xB1,
	0x07, 0xD1, 0xF7, 0x10, 0xE0, 0xA2, 0xE6, 0xB0, 0xE0,
}

func TestLoopBodyCFG(t *testing.T) {
	region := disasm.NewRegion("flash", 0, loopBody)
	cfg := avr.ATmega8()
	f, err := disasm.New[avr.Configuration](avr.Arch{}, cfg, region, 0, "copy_loop")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got, want := len(f.BasicBlocks), 2; got != want {
		t.Fatalf("basic blocks = %d, want %d", got, want)
	}
	loop, tail := f.BasicBlocks[0], f.BasicBlocks[1]
	if loop.Area.Start != 0 || loop.Area.End != 0x0C {
		t.Errorf("loop block area = [%#x, %#x), want [0, 0xC)", loop.Area.Start, loop.Area.End)
	}
	if got, want := loop.Mnemonics.Len(), 6; got != want {
		t.Errorf("loop block mnemonics = %d, want %d", got, want)
	}
	if tail.Area.Start != 0x0C || tail.Area.End != 0x12 {
		t.Errorf("tail block area = [%#x, %#x), want [0xC, 0x12)", tail.Area.Start, tail.Area.End)
	}
	if got, want := tail.Mnemonics.Len(), 3; got != want {
		t.Errorf("tail block mnemonics = %d, want %d", got, want)
	}

	wantOps := []string{"lpm", "adiw", "st", "cpi", "cpc", "brne"}
	for i, want := range wantOps {
		if got := f.Mnemonics[loop.Mnemonics.Start+i].Opcode; got != want {
			t.Errorf("loop mnemonic %d = %q, want %q", i, got, want)
		}
	}

	var failed int
	for _, n := range f.CflowGraph.Nodes() {
		if n.Kind() == disasm.NodeFailed {
			failed++
			if n.FailedAddress() != 0x12 {
				t.Errorf("failed vertex at %#x, want 0x12", n.FailedAddress())
			}
		}
	}
	if failed != 1 {
		t.Errorf("failed vertices = %d, want 1", failed)
	}
	if got, want := len(f.CflowGraph.Nodes()), 3; got != want {
		t.Errorf("vertices = %d, want %d", got, want)
	}
}

// compareSkip is the §8 scenario 2 fixture: mov/cpse/add/mov, exercising
// the one-shot pending-skip fan-out.
var compareSkip = []byte{0x12, 0x2c, 0x12, 0x10, 0x23, 0x0c, 0x21, 0x2c}

func TestCompareSkipFanOut(t *testing.T) {
	region := disasm.NewRegion("flash", 0, compareSkip)
	cfg := avr.ATmega8()
	f, err := disasm.New[avr.Configuration](avr.Arch{}, cfg, region, 0, "cpse_example")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got, want := len(f.BasicBlocks), 4; got != want {
		t.Fatalf("basic blocks = %d, want %d", got, want)
	}
	for _, bb := range f.BasicBlocks {
		if got := bb.Mnemonics.Len(); got != 1 {
			t.Errorf("block [%#x,%#x) has %d mnemonics, want 1", bb.Area.Start, bb.Area.End, got)
		}
	}

	// The instruction-level fan-out: mov->cpse, cpse->add (not taken),
	// cpse->mov@6 (taken, deferred to add's decode), add->mov@6.
	edgesFrom := func(addr uint64) int {
		for _, bb := range f.BasicBlocks {
			if bb.Area.Start == addr {
				return len(f.CflowGraph.From(bb.Node))
			}
		}
		t.Fatalf("no block at %#x", addr)
		return 0
	}
	if got := edgesFrom(0); got != 1 {
		t.Errorf("mov@0 out-edges = %d, want 1", got)
	}
	if got := edgesFrom(2); got != 2 {
		t.Errorf("cpse@2 out-edges = %d, want 2", got)
	}
	if got := edgesFrom(4); got != 1 {
		t.Errorf("add@4 out-edges = %d, want 1", got)
	}

	// The trailing mov falls through past the end of the region (8 bytes);
	// the driver recovers with a Failed vertex rather than propagating an
	// error, matching scenario 1's trailing Failed(0x12).
	var failed int
	for _, n := range f.CflowGraph.Nodes() {
		if n.Kind() == disasm.NodeFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed vertices = %d, want 1", failed)
	}
}
