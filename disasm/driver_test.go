package disasm_test

import (
	"testing"

	"github.com/panopticon-re/panopticon/arch/avr"
	"github.com/panopticon-re/panopticon/disasm"
	"github.com/panopticon-re/panopticon/ir"
)

var loopBody = []byte{
	0xC8, 0x95, 0x31, 0x96, 0x0D, 0x92, 0xA2, 0x36, 0xB1,
	0x07, 0xD1, 0xF7, 0x10, 0xE0, 0xA2, 0xE6, 0xB0, 0xE0,
}

func TestExtendIsIdempotentOnAStableFunction(t *testing.T) {
	region := disasm.NewRegion("flash", 0, loopBody)
	cfg := avr.ATmega8()
	f, err := disasm.New[avr.Configuration](avr.Arch{}, cfg, region, 0, "copy_loop")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := len(f.BasicBlocks)
	uuid := f.UUID

	if err := disasm.Extend[avr.Configuration](f, avr.Arch{}, cfg, region); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if got := len(f.BasicBlocks); got != before {
		t.Errorf("basic blocks after Extend = %d, want %d (stable)", got, before)
	}
	if f.UUID != uuid {
		t.Errorf("Extend must preserve the function's identity across calls")
	}
}

func TestRewriteRoundTripsStatementsThroughANoOpPass(t *testing.T) {
	region := disasm.NewRegion("flash", 0, loopBody)
	f, err := disasm.New[avr.Configuration](avr.Arch{}, avr.ATmega8(), region, 0, "copy_loop")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var originalCount int
	for _, mne := range f.Mnemonics {
		originalCount += mne.Statements.Len()
	}

	err = f.Rewrite(func(blocks [][]ir.Statement) error { return nil })
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	var rewrittenCount int
	for _, mne := range f.Mnemonics {
		rewrittenCount += mne.Statements.Len()
	}
	if rewrittenCount != originalCount {
		t.Errorf("statement count after no-op Rewrite = %d, want %d", rewrittenCount, originalCount)
	}
	if len(f.BasicBlocks) != 2 {
		t.Errorf("basic blocks after Rewrite = %d, want 2", len(f.BasicBlocks))
	}
}

func TestRewriteAcceptsAShrunkBlock(t *testing.T) {
	region := disasm.NewRegion("flash", 0, loopBody)
	f, err := disasm.New[avr.Configuration](avr.Arch{}, avr.ATmega8(), region, 0, "copy_loop")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = f.Rewrite(func(blocks [][]ir.Statement) error {
		if len(blocks) > 0 {
			blocks[0] = blocks[0][:0]
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Rewrite with a shrunk first block: %v", err)
	}
}
