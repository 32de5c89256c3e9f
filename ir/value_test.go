package ir_test

import (
	"testing"

	"github.com/panopticon-re/panopticon/ir"
)

func TestConstantMasksToWidth(t *testing.T) {
	tests := []struct {
		value uint64
		bits  uint
		want  uint64
	}{
		{0xff, 4, 0xf},
		{0x100, 8, 0x00},
		{0xdeadbeef, 32, 0xdeadbeef},
		{1, 1, 1},
	}
	for _, tt := range tests {
		c := ir.NewConstant(tt.value, tt.bits)
		got, ok := c.Value()
		if !ok {
			t.Fatalf("NewConstant(%#x, %d).Value() not ok", tt.value, tt.bits)
		}
		if got != tt.want {
			t.Errorf("NewConstant(%#x, %d) = %#x, want %#x", tt.value, tt.bits, got, tt.want)
		}
	}
}

func TestExtractConstant(t *testing.T) {
	c := ir.NewConstant(0xabcd, 16)
	got, err := c.Extract(8, 8)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	val, _ := got.Value()
	if val != 0xab {
		t.Errorf("Extract(8,8) of 0xabcd = %#x, want 0xab", val)
	}
}

func TestExtractOutOfRangeFails(t *testing.T) {
	c := ir.NewConstant(1, 8)
	if _, err := c.Extract(4, 8); err == nil {
		t.Fatalf("Extract(4, 8) on an 8-bit value should fail, offset+bits=12 > 8")
	}
}

func TestExtractUndefinedIsUndefined(t *testing.T) {
	got, err := ir.Undefined.Extract(4, 0)
	if err != nil {
		t.Fatalf("Extract on Undefined should not fail: %v", err)
	}
	if !got.IsUndefined() {
		t.Errorf("Extract on Undefined should stay Undefined, got %s", got)
	}
}

func TestExtractVariableView(t *testing.T) {
	v := ir.NewVariable("r0", 32, ir.NoSubscript, 0)
	sub, err := v.Extract(8, 16)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if sz, _ := sub.Size(); sz != 8 {
		t.Errorf("Extract(8,16) size = %d, want 8", sz)
	}
	if sub.Offset() != 16 {
		t.Errorf("Extract(8,16) offset = %d, want 16", sub.Offset())
	}
}

func TestLvalueRoundTrip(t *testing.T) {
	l := ir.NewLvalue("d0", 32, ir.NoSubscript)
	rv := l.ToRvalue()
	back, ok := ir.LvalueFromRvalue(rv)
	if !ok {
		t.Fatalf("LvalueFromRvalue failed on round trip")
	}
	if back.String() != l.String() {
		t.Errorf("round trip = %s, want %s", back, l)
	}
}

func TestLvalueFromRvalueRejectsOffsetView(t *testing.T) {
	v := ir.NewVariable("d0", 8, ir.NoSubscript, 8)
	if _, ok := ir.LvalueFromRvalue(v); ok {
		t.Errorf("LvalueFromRvalue should reject a nonzero-offset view")
	}
}

func TestLvalueFromRvalueRejectsConstant(t *testing.T) {
	if _, ok := ir.LvalueFromRvalue(ir.NewConstant(1, 8)); ok {
		t.Errorf("LvalueFromRvalue should reject a Constant")
	}
}

func TestUndefinedLvalueRoundTrip(t *testing.T) {
	rv := ir.UndefinedL.ToRvalue()
	if !rv.IsUndefined() {
		t.Fatalf("UndefinedL.ToRvalue() should be Undefined")
	}
	back, ok := ir.LvalueFromRvalue(rv)
	if !ok || !back.IsUndefined() {
		t.Errorf("LvalueFromRvalue(Undefined) should yield UndefinedL")
	}
}
