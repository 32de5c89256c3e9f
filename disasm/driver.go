package disasm

import (
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/panopticon-re/panopticon/bitcode"
	"github.com/panopticon-re/panopticon/ir"
)

// edgeRef is one entry of the driver's by-source/by-destination tables: a
// (value, guard) pair. In bySource, value is the jump's target; in
// byDestination, value is the origin address viewed as a 64-bit constant
// (spec §4.3 step 2).
type edgeRef struct {
	Value ir.Rvalue
	Guard ir.Guard
}

// worklist is the dedup'd FIFO of addresses still to decode, the driver's
// adaptation of the teacher's addrQueue (disassembler/disassemble.go).
type worklist struct {
	items []uint64
	seen  map[uint64]bool
}

func newWorklist() *worklist { return &worklist{seen: make(map[uint64]bool)} }

func (w *worklist) push(addr uint64) {
	if !w.seen[addr] {
		w.items = append(w.items, addr)
		w.seen[addr] = true
	}
}

func (w *worklist) pop() (uint64, bool) {
	if len(w.items) == 0 {
		return 0, false
	}
	a := w.items[0]
	w.items = w.items[1:]
	return a, true
}

// decodeState accumulates the worklist loop's local tables (spec §4.3
// steps 1-2), shared between New and Extend.
type decodeState struct {
	mnemonics  []Mnemonic
	statements [][]ir.Statement // parallel to mnemonics

	bySource      map[uint64][]edgeRef // keyed by origin mnemonic address
	byDestination map[uint64][]edgeRef // keyed by constant target address
	failed        map[uint64]bool      // addresses where decode failed
}

func newDecodeState() *decodeState {
	return &decodeState{
		bySource:      make(map[uint64][]edgeRef),
		byDestination: make(map[uint64][]edgeRef),
		failed:        make(map[uint64]bool),
	}
}

// insert places mne (with its statements) into the address-sorted
// mnemonic table.
func (d *decodeState) insert(mne Mnemonic, stmts []ir.Statement) {
	pos := sort.Search(len(d.mnemonics), func(i int) bool { return d.mnemonics[i].Area.Start >= mne.Area.Start })
	d.mnemonics = append(d.mnemonics, Mnemonic{})
	copy(d.mnemonics[pos+1:], d.mnemonics[pos:])
	d.mnemonics[pos] = mne

	d.statements = append(d.statements, nil)
	copy(d.statements[pos+1:], d.statements[pos:])
	d.statements[pos] = stmts
}

// findExact returns the index of the mnemonic starting exactly at addr, or
// -1.
func (d *decodeState) findExact(addr uint64) int {
	pos := sort.Search(len(d.mnemonics), func(i int) bool { return d.mnemonics[i].Area.Start >= addr })
	if pos < len(d.mnemonics) && d.mnemonics[pos].Area.Start == addr {
		return pos
	}
	return -1
}

// enclosing returns the mnemonic whose range contains addr (addr strictly
// inside, not at its start), or (Mnemonic{}, false).
func (d *decodeState) enclosing(addr uint64) (Mnemonic, bool) {
	pos := sort.Search(len(d.mnemonics), func(i int) bool { return d.mnemonics[i].Area.Start > addr })
	if pos == 0 {
		return Mnemonic{}, false
	}
	m := d.mnemonics[pos-1]
	if addr > m.Area.Start && addr < m.Area.End {
		return m, true
	}
	return Mnemonic{}, false
}

// runWorklist drains w, calling arch.Decode at every new address and
// recording mnemonics and jump edges into d (spec §4.3 steps 1-2).
func runWorklist[C any](arch Architecture[C], cfg *C, region *Region, w *worklist, d *decodeState, log *logrus.Logger) {
	for {
		addr, ok := w.pop()
		if !ok {
			return
		}
		if d.findExact(addr) >= 0 || d.failed[addr] {
			continue
		}
		if m, ok := d.enclosing(addr); ok {
			log.WithFields(logrus.Fields{"addr": addr, "mnemonic": m.Opcode}).Warn(errMisalignedJump(addr).Error())
			continue
		}

		match, err := arch.Decode(region, addr, cfg)
		if err != nil {
			log.WithField("addr", addr).Warn(errors.Wrap(err, errUnrecognizedInstruction(addr).Error()).Error())
			d.failed[addr] = true
			continue
		}
		if len(match.Mnemonics) == 0 {
			log.WithField("addr", addr).Warn(errUnrecognizedInstruction(addr).Error())
			d.failed[addr] = true
			continue
		}

		for i, mne := range match.Mnemonics {
			var stmts []ir.Statement
			if i < len(match.Statements) {
				stmts = match.Statements[i]
			}
			d.insert(mne, stmts)
		}
		for _, jump := range match.Jumps {
			d.bySource[jump.Origin] = append(d.bySource[jump.Origin], edgeRef{Value: jump.Target, Guard: jump.Guard})
			if value, ok := jump.Target.Value(); ok {
				d.byDestination[value] = append(d.byDestination[value], edgeRef{Value: ir.NewConstant(jump.Origin, 64), Guard: jump.Guard})
				w.push(value)
			}
		}
	}
}

// isBasicBlockBoundary reports whether a new basic block must start at b,
// given the preceding mnemonic a (spec §4.3 step 3).
func isBasicBlockBoundary(a, b Mnemonic, entry uint64, bySource, byDestination map[uint64][]edgeRef) bool {
	if a.Area.End != b.Area.Start {
		return true
	}
	for _, e := range bySource[a.Area.Start] {
		if value, ok := e.Value.Value(); ok && value != b.Area.Start {
			return true
		}
	}
	for _, e := range byDestination[b.Area.Start] {
		if value, ok := e.Value.Value(); ok && value != a.Area.Start {
			return true
		}
	}
	return b.Area.Start == entry
}

// New disassembles a Function starting at entry within region, using arch
// and its per-instance configuration cfg (spec §4.3, Function::new).
func New[C any](arch Architecture[C], cfg *C, region *Region, entry uint64, name string) (*Function, error) {
	return newOrExtend(arch, cfg, region, entry, name, nil)
}

// Extend incrementally grows f: existing mnemonics seed the same tables,
// f's CFG edges seed new work-set starts, and basic-block assembly is
// rerun (spec §4.3, Function::extend). It handles the case where a later
// decode splits an existing block.
func Extend[C any](f *Function, arch Architecture[C], cfg *C, region *Region) error {
	entry, err := f.EntryAddress()
	if err != nil {
		return err
	}
	updated, err := newOrExtend(arch, cfg, region, entry, f.Name, f)
	if err != nil {
		return err
	}
	*f = *updated
	return nil
}

func newOrExtend[C any](arch Architecture[C], cfg *C, region *Region, entry uint64, name string, seed *Function) (*Function, error) {
	log := logrus.StandardLogger()
	d := newDecodeState()
	w := newWorklist()

	if seed != nil {
		for _, mne := range seed.Mnemonics {
			stmts, err := seed.Statements(mne.Statements)
			if err != nil {
				return nil, errors.Wrap(err, "extend: reading existing statements")
			}
			d.insert(mne, stmts)
		}
		for _, n := range seed.CflowGraph.Nodes() {
			if n.Kind() != NodeBasicBlock {
				continue
			}
			bb := seed.BasicBlocks[n.BasicBlock()]
			last := seed.Mnemonics[bb.Mnemonics.End-1]
			for _, succ := range seed.CflowGraph.From(n) {
				guard, _ := seed.CflowGraph.Edge(n, succ)
				var target ir.Rvalue
				switch succ.Kind() {
				case NodeBasicBlock:
					target = ir.NewConstant(seed.Mnemonics[seed.BasicBlocks[succ.BasicBlock()].Mnemonics.Start].Area.Start, 64)
				case NodeFailed:
					target = ir.NewConstant(succ.FailedAddress(), 64)
				default:
					target = succ.Target()
				}
				d.bySource[last.Area.Start] = append(d.bySource[last.Area.Start], edgeRef{Value: target, Guard: guard})
				if value, ok := target.Value(); ok {
					d.byDestination[value] = append(d.byDestination[value], edgeRef{Value: ir.NewConstant(last.Area.Start, 64), Guard: guard})
					w.push(value)
				}
			}
		}
	}
	w.push(entry)

	runWorklist(arch, cfg, region, w, d, log)

	f, err := assemble(entry, name, d)
	if err != nil {
		return nil, err
	}
	if seed != nil {
		f.UUID = seed.UUID
		for _, a := range seed.aliases {
			f.AddAlias(a)
		}
	}
	return f, nil
}

// assemble builds basic blocks, the CFG, and the reverse-post-ordered
// bitcode store from a drained decodeState (spec §4.3 steps 3-5).
func assemble(entry uint64, name string, d *decodeState) (*Function, error) {
	if len(d.mnemonics) == 0 {
		return nil, errFunctionHasNoEntryPoint()
	}

	// Step 3: partition the address-sorted mnemonics into basic blocks.
	type addrBlock struct {
		area      AddressRange
		mnemonics MnemonicRange
	}
	var blocks []addrBlock
	idx := 0
	for idx < len(d.mnemonics) {
		start := idx
		for idx+1 < len(d.mnemonics) && !isBasicBlockBoundary(d.mnemonics[idx], d.mnemonics[idx+1], entry, d.bySource, d.byDestination) {
			idx++
		}
		blocks = append(blocks, addrBlock{
			area:      AddressRange{Start: d.mnemonics[start].Area.Start, End: d.mnemonics[idx].Area.End},
			mnemonics: MnemonicRange{Start: start, End: idx + 1},
		})
		idx++
	}

	entryBlock := -1
	for i, b := range blocks {
		if b.area.Start == entry {
			entryBlock = i
			break
		}
	}
	if entryBlock < 0 {
		return nil, errFunctionHasNoEntryPoint()
	}

	// Step 5: build the CFG over the address-ordered blocks first; indices
	// are corrected to reverse-post-order afterward.
	cfg := NewControlFlowGraph()
	nodes := make([]CfgNode, len(blocks))
	for i := range blocks {
		nodes[i] = cfg.AddBasicBlockNode(i)
	}
	failedNodes := make(map[uint64]CfgNode)
	blockStart := make(map[uint64]int, len(blocks))
	for i, b := range blocks {
		blockStart[b.area.Start] = i
	}

	for i, b := range blocks {
		last := d.mnemonics[b.mnemonics.End-1]
		for _, e := range d.bySource[last.Area.Start] {
			target, guard := e.Value, e.Guard
			if value, ok := target.Value(); ok {
				if bi, ok := blockStart[value]; ok {
					cfg.SetEdge(nodes[i], nodes[bi], guard)
					continue
				}
				if d.failed[value] {
					fn, ok := failedNodes[value]
					if !ok {
						fn = cfg.AddFailedNode(value)
						failedNodes[value] = fn
					}
					cfg.SetEdge(nodes[i], fn, guard)
					continue
				}
			}
			un := cfg.AddUnresolvedNode(target)
			cfg.SetEdge(nodes[i], un, guard)
		}
	}

	// Reverse post order over the reachable basic blocks, via a direct
	// post-order walk of the gonum-backed CFG (spec §4.3 step 4).
	rpo := reversePostOrder(cfg, nodes[entryBlock], nodes)

	finalBlocks := make([]BasicBlock, len(rpo))
	for finalIdx, n := range rpo {
		oldIdx := n.BasicBlock()
		finalBlocks[finalIdx] = BasicBlock{
			Area:      blocks[oldIdx].area,
			Mnemonics: blocks[oldIdx].mnemonics,
			Node:      n,
		}
		SetBasicBlockIndex(n, finalIdx)
	}

	var entryNode CfgNode
	for _, b := range finalBlocks {
		if b.Area.Start == entry {
			entryNode = b.Node
			break
		}
	}

	// Step 4: re-emit statements in reverse post order into a fresh store.
	store := bitcode.New()
	mnemonics := make([]Mnemonic, len(d.mnemonics))
	copy(mnemonics, d.mnemonics)
	for _, b := range finalBlocks {
		for mi := b.Mnemonics.Start; mi < b.Mnemonics.End; mi++ {
			start := store.Len()
			for _, st := range d.statements[mi] {
				if _, err := store.Push(st); err != nil {
					return nil, errors.Wrapf(err, "assemble: encoding mnemonic at %#x", mnemonics[mi].Area.Start)
				}
			}
			mnemonics[mi].Statements = StatementRange{Start: start, End: store.Len()}
		}
	}

	return &Function{
		Name:        name,
		UUID:        uuid.New(),
		Code:        store,
		BasicBlocks: finalBlocks,
		Mnemonics:   mnemonics,
		CflowGraph:  cfg,
		Entry:       entryNode,
		Kind:        KindRegular,
	}, nil
}

// reversePostOrder walks cfg depth-first from root, via gonum's
// traverse.DepthFirst run over a sortedDirected view of cfg (so the
// traversal visits each vertex's successors in ascending id order,
// matching cfg.From's own determinism guarantee, spec §5), and returns
// every NodeBasicBlock-kind vertex in reverse post order. addressOrdered
// is the full set of basic-block nodes in address order; any left
// unreached from root (which should not occur per the §4.3 invariant
// that every vertex is reachable from entry or is an indirect-jump
// target, but are handled defensively for determinism) are appended
// afterward in address order.
func reversePostOrder(cfg *ControlFlowGraph, root CfgNode, addressOrdered []CfgNode) []CfgNode {
	children := make(map[int64][]CfgNode)
	walker := &traverse.DepthFirst{
		Visit: func(u, v graph.Node) {
			un := u.(CfgNode)
			children[un.ID()] = append(children[un.ID()], v.(CfgNode))
		},
	}
	walker.Walk(sortedDirected{cfg: cfg}, root, func(graph.Node) bool { return false })

	visited := make(map[int64]bool)
	var post []CfgNode
	var visit func(n CfgNode)
	visit = func(n CfgNode) {
		if visited[n.ID()] {
			return
		}
		visited[n.ID()] = true
		for _, succ := range children[n.ID()] {
			visit(succ)
		}
		if n.Kind() == NodeBasicBlock {
			post = append(post, n)
		}
	}
	visit(root)

	rpo := make([]CfgNode, len(post))
	for i, n := range post {
		rpo[len(post)-1-i] = n
	}

	if len(rpo) < len(addressOrdered) {
		seen := make(map[int]bool, len(rpo))
		for _, n := range rpo {
			seen[n.BasicBlock()] = true
		}
		for _, n := range addressOrdered {
			if !seen[n.BasicBlock()] {
				rpo = append(rpo, n)
				seen[n.BasicBlock()] = true
			}
		}
	}
	return rpo
}
