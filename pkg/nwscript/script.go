package nwscript

import (
	"io"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Script is a decoded NCS file and everything recovered from it.
type Script struct {
	table FunctionTable
	size  int

	instructions []Instruction
	blocks       []Block
	blockOrder   []BlockID // Blocks in address order
	subs         []SubRoutine
	variables    []Variable

	entry, global, main SubRoutineID
	mainCall            InstructionID // JSR that invokes main
	classifyErr         error

	globals []VariableID

	hasStackAnalysis       bool
	hasControlFlowAnalysis bool
}

// Load reads a whole compiled script from r. See Parse.
func Load(r io.Reader, table FunctionTable) (*Script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading script")
	}
	return Parse(data, table)
}

// Parse decodes a compiled script and builds its blocks and subroutines.
// table resolves engine functions during stack analysis and may be nil when
// only the structure is needed.
//
// Failing to identify main is not fatal: Parse returns the Script and the
// condition is reported again by AnalyzeStack.
func Parse(data []byte, table FunctionTable) (*Script, error) {
	s := &Script{
		table:    table,
		size:     len(data),
		entry:    NoSubRoutine,
		global:   NoSubRoutine,
		main:     NoSubRoutine,
		mainCall: NoInstruction,
	}

	insts, err := decodeInstructions(data)
	if err != nil {
		return nil, err
	}
	s.instructions = insts
	if err := linkInstructions(s.instructions); err != nil {
		return nil, err
	}
	if err := s.constructBlocks(); err != nil {
		return nil, errors.Wrap(err, "constructing blocks")
	}
	s.findDeadEdges()
	if err := s.constructSubRoutines(); err != nil {
		return nil, errors.Wrap(err, "constructing subroutines")
	}
	s.linkCallers()
	if err := s.classifySubRoutines(); err != nil {
		if !IsSoft(err) {
			return nil, errors.Wrap(err, "classifying subroutines")
		}
		glog.V(1).Infof("%v", err)
		s.classifyErr = err
	}
	return s, nil
}

// Size returns the length of the decoded file in bytes.
func (s *Script) Size() int { return s.size }

// FunctionTable returns the table the script was parsed with.
func (s *Script) FunctionTable() FunctionTable { return s.table }

// Instructions returns all instructions in address order.
func (s *Script) Instructions() []Instruction { return s.instructions }

// Instruction returns the instruction with the given id.
func (s *Script) Instruction(id InstructionID) *Instruction { return &s.instructions[id] }

// FindInstruction returns the instruction at addr.
func (s *Script) FindInstruction(addr uint32) (*Instruction, bool) {
	i := sort.Search(len(s.instructions), func(i int) bool { return s.instructions[i].Address >= addr })
	if i < len(s.instructions) && s.instructions[i].Address == addr {
		return &s.instructions[i], true
	}
	return nil, false
}

// Blocks returns all blocks in address order.
func (s *Script) Blocks() []*Block {
	out := make([]*Block, len(s.blockOrder))
	for i, id := range s.blockOrder {
		out[i] = &s.blocks[id]
	}
	return out
}

// Block returns the block with the given id.
func (s *Script) Block(id BlockID) *Block { return &s.blocks[id] }

// SubRoutines returns all subroutines in address order.
func (s *Script) SubRoutines() []SubRoutine { return s.subs }

// SubRoutine returns the subroutine with the given id.
func (s *Script) SubRoutine(id SubRoutineID) *SubRoutine { return &s.subs[id] }

// SubRoutineByAddress returns the subroutine whose entry is at addr.
func (s *Script) SubRoutineByAddress(addr uint32) (*SubRoutine, bool) {
	for i := range s.subs {
		if s.subs[i].Address == addr {
			return &s.subs[i], true
		}
	}
	return nil, false
}

// EntrySubRoutine returns the subroutine execution starts in.
func (s *Script) EntrySubRoutine() (*SubRoutine, bool) { return s.subByID(s.entry) }

// GlobalSubRoutine returns the global-variable initializer, if any.
func (s *Script) GlobalSubRoutine() (*SubRoutine, bool) { return s.subByID(s.global) }

// MainSubRoutine returns main or StartingConditional, if identified.
func (s *Script) MainSubRoutine() (*SubRoutine, bool) { return s.subByID(s.main) }

func (s *Script) subByID(id SubRoutineID) (*SubRoutine, bool) {
	if id == NoSubRoutine {
		return nil, false
	}
	return &s.subs[id], true
}

// Variables returns every variable found by stack analysis.
func (s *Script) Variables() []Variable { return s.variables }

// Variable returns the variable with the given id.
func (s *Script) Variable(id VariableID) *Variable { return &s.variables[id] }

// Globals returns the global variables, bottom of the stack first.
func (s *Script) Globals() []VariableID { return s.globals }

// HasStackAnalysis reports whether AnalyzeStack has completed.
func (s *Script) HasStackAnalysis() bool { return s.hasStackAnalysis }

// HasControlFlowAnalysis reports whether AnalyzeControlFlow has completed.
func (s *Script) HasControlFlowAnalysis() bool { return s.hasControlFlowAnalysis }

// AnalyzeStack runs stack analysis. It does nothing if it already succeeded.
func (s *Script) AnalyzeStack() error {
	if s.hasStackAnalysis {
		return nil
	}
	if s.main == NoSubRoutine {
		if s.classifyErr != nil {
			return s.classifyErr
		}
		return softError(ErrNoMainSubRoutine, "cannot analyze stack")
	}
	if err := s.analyzeStack(); err != nil {
		return errors.Wrap(err, "stack analysis")
	}
	s.hasStackAnalysis = true
	glog.V(1).Infof("stack analysis: %d variables, %d globals", len(s.variables), len(s.globals))
	return nil
}

// AnalyzeControlFlow runs control-flow analysis. It does nothing if it
// already succeeded.
func (s *Script) AnalyzeControlFlow() error {
	if s.hasControlFlowAnalysis {
		return nil
	}
	if err := s.analyzeControlFlow(); err != nil {
		return errors.Wrap(err, "control-flow analysis")
	}
	s.hasControlFlowAnalysis = true
	return nil
}
