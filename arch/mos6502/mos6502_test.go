package mos6502_test

import (
	"testing"

	"github.com/panopticon-re/panopticon/arch/mos6502"
	"github.com/panopticon-re/panopticon/disasm"
)

// countLoop is `lda #0; loop: inx; cmp #5; bne loop; rts` — a self-looping
// block (the BNE's taken edge targets its own block's start) followed by a
// terminal RTS whose unknown return address becomes an Unresolved vertex.
var countLoop = []byte{0xA9, 0x00, 0xE8, 0xC9, 0x05, 0xD0, 0xFB, 0x60}

func TestCountLoopCFG(t *testing.T) {
	region := disasm.NewRegion("code", 0, countLoop)
	f, err := disasm.New[mos6502.Configuration](mos6502.Arch{}, mos6502.NMOS6502(), region, 0, "count_loop")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got, want := len(f.BasicBlocks), 3; got != want {
		t.Fatalf("basic blocks = %d, want %d", got, want)
	}
	entry, loop, tail := f.BasicBlocks[0], f.BasicBlocks[1], f.BasicBlocks[2]
	if entry.Area.Start != 0 || entry.Area.End != 2 {
		t.Errorf("entry block = [%#x,%#x), want [0,2)", entry.Area.Start, entry.Area.End)
	}
	if loop.Area.Start != 2 || loop.Area.End != 7 {
		t.Errorf("loop block = [%#x,%#x), want [2,7)", loop.Area.Start, loop.Area.End)
	}
	if got, want := loop.Mnemonics.Len(), 3; got != want {
		t.Errorf("loop block mnemonics = %d, want %d", got, want)
	}
	if tail.Area.Start != 7 || tail.Area.End != 8 {
		t.Errorf("tail block = [%#x,%#x), want [7,8)", tail.Area.Start, tail.Area.End)
	}

	if got := len(f.CflowGraph.From(loop.Node)); got != 2 {
		t.Errorf("loop block out-edges = %d, want 2 (self-loop + fall through)", got)
	}
	selfLoop := false
	for _, succ := range f.CflowGraph.From(loop.Node) {
		if succ.Kind() == disasm.NodeBasicBlock && succ.BasicBlock() == loop.Node.BasicBlock() {
			selfLoop = true
		}
	}
	if !selfLoop {
		t.Error("expected loop block to have an edge back to itself (BNE taken)")
	}

	var unresolved int
	for _, n := range f.CflowGraph.Nodes() {
		if n.Kind() == disasm.NodeUnresolved {
			unresolved++
		}
	}
	if unresolved != 1 {
		t.Errorf("unresolved vertices = %d, want 1 (RTS's unknown return address)", unresolved)
	}
}
