package disasm

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/panopticon-re/panopticon/bitcode"
	"github.com/panopticon-re/panopticon/ir"
)

// FunctionKind distinguishes a regularly-disassembled Function from a
// recognized PLT/import stub (spec §3; SPEC_FULL.md supplemented feature
// #1, grounded on original_source core/src/function.rs's FunctionKind).
type FunctionKind uint8

const (
	KindRegular FunctionKind = iota
	KindStub
)

// Function is the CFG + bitcode + mnemonics produced by disassembling one
// entry point (spec §3). It exclusively owns its bitcode store, block
// array, mnemonic array and CFG; indices into BasicBlocks/Mnemonics are
// stable for the Function's lifetime.
type Function struct {
	Name string
	UUID uuid.UUID

	Code         *bitcode.Store
	BasicBlocks  []BasicBlock // sorted in reverse post-order of the CFG
	Mnemonics    []Mnemonic   // sorted by Area.Start
	CflowGraph   *ControlFlowGraph
	Entry        CfgNode

	Kind FunctionKind
	// StubName/PLTAddress are valid when Kind == KindStub.
	StubName   string
	PLTAddress uint64

	aliases []string
}

// NewStubFunction builds a FunctionKind == KindStub placeholder for a
// PLT/import trampoline the caller has identified (SPEC_FULL.md
// supplemented feature #1). The driver does not detect stubs and never
// calls it.
func NewStubFunction(name string, pltAddress uint64) *Function {
	return &Function{
		Name:       fmt.Sprintf("%s@plt", name),
		UUID:       uuid.New(),
		Code:       bitcode.New(),
		Kind:       KindStub,
		StubName:   name,
		PLTAddress: pltAddress,
	}
}

// AddAlias records an additional known name for f (SPEC_FULL.md
// supplemented feature #2).
func (f *Function) AddAlias(name string) { f.aliases = append(f.aliases, name) }

// Aliases returns every alias recorded via AddAlias, in insertion order.
func (f *Function) Aliases() []string { return f.aliases }

// EntryAddress returns the address of f's entry basic block.
func (f *Function) EntryAddress() (uint64, error) {
	if f.Entry.Kind() != NodeBasicBlock {
		return 0, errFunctionHasNoEntryPoint()
	}
	bb := f.BasicBlocks[f.Entry.BasicBlock()]
	return bb.Area.Start, nil
}

// Statements returns the decoded statements in r, a StatementRange that
// must start at a statement boundary (normally one a Mnemonic recorded).
func (f *Function) Statements(r StatementRange) ([]ir.Statement, error) {
	return f.Code.IterStatements(r.Start, r.End)
}

// MnemonicsIn returns the Mnemonics belonging to bb.
func (f *Function) MnemonicsIn(bb BasicBlock) []Mnemonic {
	return f.Mnemonics[bb.Mnemonics.Start:bb.Mnemonics.End]
}

// IndirectJumpTargets returns the Rvalue target of every Unresolved CFG
// vertex — the variables used as indirect jump targets that the original
// implementation's pointer-analysis pass consumes (SPEC_FULL.md
// supplemented feature #5; original_source core/src/function.rs's
// `indirect_jumps`).
func (f *Function) IndirectJumpTargets() []ir.Rvalue {
	var out []ir.Rvalue
	for _, n := range f.CflowGraph.Nodes() {
		if n.Kind() == NodeUnresolved {
			out = append(out, n.Target())
		}
	}
	return out
}

// Rewrite lets an external pass (SSA conversion, lowering) mutate every
// statement in place. f is the per-block, per-mnemonic nested view of f's
// current contents; rewrite may mutate the Statement slices (including
// their length) in place. Afterward f's bitcode store, mnemonic statement
// ranges and basic-block mnemonic ranges are rebuilt from the mutated
// view (SPEC_FULL.md supplemented feature #4; original_source
// core/src/function.rs's `rewrite`).
func (f *Function) Rewrite(rewrite func(blocks [][]ir.Statement) error) error {
	blocks := make([][]ir.Statement, len(f.BasicBlocks))
	mnemonicsPerBlock := make([][]Mnemonic, len(f.BasicBlocks))

	for bi, bb := range f.BasicBlocks {
		mnes := f.MnemonicsIn(bb)
		mnemonicsPerBlock[bi] = append([]Mnemonic(nil), mnes...)
		var stmts []ir.Statement
		for _, mne := range mnes {
			s, err := f.Statements(mne.Statements)
			if err != nil {
				return errors.Wrap(err, "rewrite: reading existing statements")
			}
			stmts = append(stmts, s...)
		}
		blocks[bi] = stmts
	}

	if err := rewrite(blocks); err != nil {
		return errors.Wrap(err, "rewrite: callback failed")
	}

	code := bitcode.New()
	mnemonics := make([]Mnemonic, 0, len(f.Mnemonics))
	newRanges := make([]MnemonicRange, len(f.BasicBlocks))

	for bi, mnes := range mnemonicsPerBlock {
		stmts := blocks[bi]
		first := len(mnemonics)
		pos := 0
		var prevEnd *uint64
		for mi, mne := range mnes {
			if prevEnd != nil && *prevEnd != mne.Area.Start {
				return errNonContiguousBasicBlock(bi, *prevEnd, mne.Area.Start)
			}
			end := mne.Area.End
			prevEnd = &end

			// Each mnemonic takes back the statement count recorded on
			// mne.Statements, cut short once the block's slice runs
			// out; the block's last mnemonic also takes every statement
			// the slice gained.
			n := mne.Statements.Len()
			if pos+n > len(stmts) || mi == len(mnes)-1 {
				n = len(stmts) - pos
			}
			start := code.Len()
			for _, st := range stmts[pos : pos+n] {
				if _, err := code.Push(st); err != nil {
					return errors.Wrapf(err, "rewrite: re-encoding mnemonic %d of block %d", mi, bi)
				}
			}
			mne.Statements = StatementRange{Start: start, End: code.Len()}
			mnemonics = append(mnemonics, mne)
			pos += n
		}
		newRanges[bi] = MnemonicRange{Start: first, End: len(mnemonics)}
	}

	for bi := range f.BasicBlocks {
		f.BasicBlocks[bi].Mnemonics = newRanges[bi]
	}
	f.Mnemonics = mnemonics
	f.Code = code
	return nil
}

// Len reports how many statements a StatementRange spans.
func (r StatementRange) Len() int { return r.End - r.Start }
