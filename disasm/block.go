package disasm

// BasicBlock is a maximal straight-line run of mnemonics (spec §3). Its
// Mnemonics range indexes into the owning Function's Mnemonics slice,
// which stays sorted by address regardless of the order BasicBlocks
// itself is kept in (reverse post-order of the CFG).
//
// Invariant: the mnemonics of a block are contiguous in address space
// (mne[k].Area.End == mne[k+1].Area.Start) and are neither crossed by a
// jump from outside nor do they emit an internal jump target.
type BasicBlock struct {
	Area      AddressRange
	Mnemonics MnemonicRange
	Node      CfgNode
}
