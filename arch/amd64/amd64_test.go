package amd64_test

import (
	"testing"

	"github.com/panopticon-re/panopticon/arch/amd64"
	"github.com/panopticon-re/panopticon/disasm"
)

// countLoop is `mov eax,0; loop: add eax,ecx; cmp eax,5; jne loop; ret`.
var countLoop = []byte{
	0xB8, 0x00, 0x00, 0x00, 0x00, // mov eax, 0
	0x01, 0xC8, // add eax, ecx
	0x83, 0xF8, 0x05, // cmp eax, 5
	0x75, 0xF9, // jne loop
	0xC3, // ret
}

func TestCountLoopCFG(t *testing.T) {
	region := disasm.NewRegion("code", 0, countLoop)
	f, err := disasm.New[amd64.Configuration](amd64.Arch{}, amd64.Long(), region, 0, "count_loop")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got, want := len(f.BasicBlocks), 3; got != want {
		t.Fatalf("basic blocks = %d, want %d", got, want)
	}
	entry, loop, tail := f.BasicBlocks[0], f.BasicBlocks[1], f.BasicBlocks[2]
	if entry.Area.Start != 0 || entry.Area.End != 5 {
		t.Errorf("entry block = [%#x,%#x), want [0,5)", entry.Area.Start, entry.Area.End)
	}
	if loop.Area.Start != 5 || loop.Area.End != 12 {
		t.Errorf("loop block = [%#x,%#x), want [5,12)", loop.Area.Start, loop.Area.End)
	}
	if got, want := loop.Mnemonics.Len(), 3; got != want {
		t.Errorf("loop block mnemonics = %d, want %d", got, want)
	}
	if tail.Area.Start != 12 || tail.Area.End != 13 {
		t.Errorf("tail block = [%#x,%#x), want [12,13)", tail.Area.Start, tail.Area.End)
	}

	selfLoop := false
	for _, succ := range f.CflowGraph.From(loop.Node) {
		if succ.Kind() == disasm.NodeBasicBlock && succ.BasicBlock() == loop.Node.BasicBlock() {
			selfLoop = true
		}
	}
	if !selfLoop {
		t.Error("expected loop block to have an edge back to itself (jne taken)")
	}

	var unresolved int
	for _, n := range f.CflowGraph.Nodes() {
		if n.Kind() == disasm.NodeUnresolved {
			unresolved++
		}
	}
	if unresolved != 1 {
		t.Errorf("unresolved vertices = %d, want 1 (ret's unknown return address)", unresolved)
	}
}
