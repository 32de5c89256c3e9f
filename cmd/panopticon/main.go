// Command panopticon drives the disassembler end to end: load a region of
// bytes, decode it with one of the illustrated architectures, optionally
// run the sign-domain abstract interpreter over the result, and optionally
// emit a layered graph layout of the control-flow graph.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/panopticon-re/panopticon/absint"
	"github.com/panopticon-re/panopticon/absint/domains/sign"
	"github.com/panopticon-re/panopticon/arch/amd64"
	"github.com/panopticon-re/panopticon/arch/avr"
	"github.com/panopticon-re/panopticon/arch/mos6502"
	"github.com/panopticon-re/panopticon/disasm"
	"github.com/panopticon-re/panopticon/layout"
)

var (
	archName  = flag.String("arch", "", "architecture to decode: avr, mos6502, amd64")
	loadAddr  = flag.Uint64("base", 0x0000, "address of the region's first byte (hex ok, e.g. 0x8000)")
	entryAddr = flag.Uint64("entry", 0, "entry address to start decoding from, defaults to -base")
	funcName  = flag.String("name", "main", "name to give the decoded function")
	interpret = flag.Bool("interpret", false, "run the sign-domain abstract interpreter and print its results")
	doLayout  = flag.Bool("layout", false, "compute a layered graph layout of the control-flow graph and print it")
	verbose   = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <inputfile>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	filename := flag.Arg(0)

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		log.Fatalf("reading %s: %v", filename, err)
	}
	region := disasm.NewRegion(filename, *loadAddr, data)

	entry := *entryAddr
	if entry == 0 {
		entry = *loadAddr
	}

	f, err := decode(region, entry, *funcName)
	if err != nil {
		log.Fatalf("decode: %v", err)
	}
	printFunction(f, log)

	if *interpret {
		if err := runInterpreter(f); err != nil {
			log.Fatalf("interpret: %v", err)
		}
	}

	if *doLayout {
		if err := runLayout(f); err != nil {
			log.Fatalf("layout: %v", err)
		}
	}
}

// decode picks an Architecture by name and runs the driver over region from
// entry (spec §4.3). Each illustrated architecture has its own
// Configuration type, so the dispatch is a plain switch rather than a
// generic helper.
func decode(region *disasm.Region, entry uint64, name string) (*disasm.Function, error) {
	switch *archName {
	case "avr":
		return disasm.New(avr.Arch{}, avr.ATmega8(), region, entry, name)
	case "mos6502":
		return disasm.New(mos6502.Arch{}, mos6502.NMOS6502(), region, entry, name)
	case "amd64":
		return disasm.New(amd64.Arch{}, amd64.Long(), region, entry, name)
	case "":
		return nil, fmt.Errorf("missing -arch (avr, mos6502, amd64)")
	default:
		return nil, fmt.Errorf("unknown -arch %q (want avr, mos6502, amd64)", *archName)
	}
}

func printFunction(f *disasm.Function, log *logrus.Logger) {
	fmt.Printf("function %s (%s)\n", f.Name, f.UUID)
	for _, bb := range f.BasicBlocks {
		fmt.Printf("  block %#x..%#x\n", bb.Area.Start, bb.Area.End)
		for _, mne := range f.MnemonicsIn(bb) {
			fmt.Printf("    %#08x  %s\n", mne.Area.Start, mne.Opcode)
			stmts, err := f.Statements(mne.Statements)
			if err != nil {
				log.WithField("addr", mne.Area.Start).Warnf("reading statements: %v", err)
				continue
			}
			for _, st := range stmts {
				fmt.Printf("               %s\n", st)
			}
		}
	}
}

func runInterpreter(f *disasm.Function) error {
	env, err := absint.Approximate(f, sign.Domain{}, nil)
	if err != nil {
		return err
	}
	fmt.Println("abstract interpretation (sign domain):")
	for lv, v := range env {
		fmt.Printf("  %s = %s\n", lv, v)
	}
	return nil
}

// runLayout builds a layered graph layout of f's control-flow graph: one
// vertex per basic block, one edge per CFG edge between basic blocks.
// Unresolved/Failed vertices are left out of the layout since they have no
// natural width/height of their own.
func runLayout(f *disasm.Function) error {
	vertices := make([]layout.VertexID, len(f.BasicBlocks))
	dims := make(map[layout.VertexID]layout.Dimensions, len(f.BasicBlocks))
	for i, bb := range f.BasicBlocks {
		id := layout.VertexID(bb.Node.ID())
		vertices[i] = id
		dims[id] = layout.Dimensions{Width: 120, Height: 40}
	}

	var edges []layout.Edge
	for _, bb := range f.BasicBlocks {
		for _, succ := range f.CflowGraph.From(bb.Node) {
			if succ.Kind() != disasm.NodeBasicBlock {
				continue
			}
			edges = append(edges, layout.Edge{Idx: len(edges), From: layout.VertexID(bb.Node.ID()), To: layout.VertexID(succ.ID())})
		}
	}

	entry := layout.VertexID(f.Entry.ID())
	result, err := layout.Layout(vertices, edges, dims, &entry, layout.DefaultSpacing())
	if err != nil {
		return err
	}

	fmt.Println("layout:")
	for _, bb := range f.BasicBlocks {
		p := result.Positions[layout.VertexID(bb.Node.ID())]
		fmt.Printf("  block %#x at (%.0f, %.0f)\n", bb.Area.Start, p.X, p.Y)
	}
	return nil
}
