package nwscript

import (
	"sort"

	"github.com/golang/glog"
)

// Edge links a block to one of its parents or children.
type Edge struct {
	Block BlockID
	Type  EdgeType
}

// Block is a maximal straight-line run of instructions.
type Block struct {
	ID      BlockID
	Address uint32

	Instructions []InstructionID

	// Parents and Children are kept in the order the edges were added.
	// Children of a conditional jump are ordered (true, false).
	Parents  []Edge
	Children []Edge

	SubRoutine SubRoutineID

	// Unreachable blocks hold code no path from the entry point reaches.
	// They have no edges and analysis skips them.
	Unreachable bool

	// Controls lists the control structures this block takes part in.
	Controls []ControlStructure

	state AnalysisState
}

// First returns the block's first instruction.
func (b *Block) First() InstructionID { return b.Instructions[0] }

// Last returns the block's last instruction.
func (b *Block) Last() InstructionID { return b.Instructions[len(b.Instructions)-1] }

// HasChild reports whether c is a child of b through any edge.
func (b *Block) HasChild(c BlockID) bool {
	for _, e := range b.Children {
		if e.Block == c {
			return true
		}
	}
	return false
}

// EdgeTo returns the kind of the first edge from b to c.
func (b *Block) EdgeTo(c BlockID) (EdgeType, bool) {
	for _, e := range b.Children {
		if e.Block == c {
			return e.Type, true
		}
	}
	return 0, false
}

// blockFor returns the block starting at instruction id, creating it when
// needed. created reports whether the block is new.
func (s *Script) blockFor(id InstructionID) (BlockID, bool, error) {
	in := &s.instructions[id]
	if in.Block != NoBlock {
		if s.blocks[in.Block].First() != id {
			return NoBlock, false, structuralErrorf(in.Address, "jump into the middle of block %08X", s.blocks[in.Block].Address)
		}
		return in.Block, false, nil
	}
	bid := BlockID(len(s.blocks))
	s.blocks = append(s.blocks, Block{
		ID:         bid,
		Address:    in.Address,
		SubRoutine: NoSubRoutine,
	})
	in.Block = bid
	s.blocks[bid].Instructions = []InstructionID{id}
	return bid, true, nil
}

func (s *Script) addEdge(parent, child BlockID, t EdgeType) {
	s.blocks[parent].Children = append(s.blocks[parent].Children, Edge{Block: child, Type: t})
	s.blocks[child].Parents = append(s.blocks[child].Parents, Edge{Block: parent, Type: t})
}

// constructBlocks partitions the instructions into blocks, starting from
// the first instruction after the header.
func (s *Script) constructBlocks() error {
	if len(s.instructions) == 0 {
		return nil
	}
	bid, _, err := s.blockFor(0)
	if err != nil {
		return err
	}
	if err := s.fillBlock(bid); err != nil {
		return err
	}
	s.sweepUnreachable()
	sort.Slice(s.blockOrder, func(i, j int) bool {
		return s.blocks[s.blockOrder[i]].Address < s.blocks[s.blockOrder[j]].Address
	})
	glog.V(2).Infof("constructed %d blocks", len(s.blocks))
	return nil
}

// fillBlock extends block bid instruction by instruction until it meets a
// control transfer or the start of another block, then links and fills its
// children.
func (s *Script) fillBlock(bid BlockID) error {
	s.blockOrder = append(s.blockOrder, bid)
	id := s.blocks[bid].First()
	for {
		in := &s.instructions[id]
		if in.IsBlockEnd() {
			return s.branchBlock(bid, id)
		}
		next := in.Follower
		nin := &s.instructions[next]
		if nin.AddressType != AddressPlain || nin.Block != NoBlock {
			return s.linkChild(bid, next, EdgeUnconditional)
		}
		nin.Block = bid
		s.blocks[bid].Instructions = append(s.blocks[bid].Instructions, next)
		id = next
	}
}

// sweepUnreachable puts every instruction left outside a block into an
// unreachable block. A run ends at a control transfer or a label.
func (s *Script) sweepUnreachable() {
	cur := NoBlock
	for id := range s.instructions {
		in := &s.instructions[id]
		if in.Block != NoBlock {
			cur = NoBlock
			continue
		}
		if cur == NoBlock || in.AddressType != AddressPlain {
			cur = BlockID(len(s.blocks))
			s.blocks = append(s.blocks, Block{
				ID:          cur,
				Address:     in.Address,
				SubRoutine:  NoSubRoutine,
				Unreachable: true,
			})
			s.blockOrder = append(s.blockOrder, cur)
			glog.V(1).Infof("unreachable code at %08X", in.Address)
		}
		in.Block = cur
		s.blocks[cur].Instructions = append(s.blocks[cur].Instructions, InstructionID(id))
		if in.IsBlockEnd() {
			cur = NoBlock
		}
	}
}

func (s *Script) linkChild(parent BlockID, id InstructionID, t EdgeType) error {
	child, created, err := s.blockFor(id)
	if err != nil {
		return err
	}
	s.addEdge(parent, child, t)
	if created {
		return s.fillBlock(child)
	}
	return nil
}

func (s *Script) branchBlock(bid BlockID, id InstructionID) error {
	in := &s.instructions[id]
	switch in.Opcode {
	case OpJMP:
		return s.linkChild(bid, in.Branches[0], EdgeUnconditional)

	case OpJZ, OpJNZ:
		if err := s.linkChild(bid, in.Branches[0], EdgeConditionalTrue); err != nil {
			return err
		}
		return s.linkChild(bid, in.Branches[1], EdgeConditionalFalse)

	case OpJSR, OpSTORESTATE:
		t := EdgeSubRoutineCall
		if in.Opcode == OpSTORESTATE {
			t = EdgeSubRoutineStore
		}
		if err := s.linkChild(bid, in.Branches[0], t); err != nil {
			return err
		}
		if in.Follower != NoInstruction {
			return s.linkChild(bid, in.Follower, EdgeSubRoutineTail)
		}
	}
	return nil
}

// isTopCopyTest reports whether block b consists of exactly a copy of the
// top stack slot followed by a conditional jump, returning that jump.
func (s *Script) isTopCopyTest(b *Block) (Opcode, bool) {
	if len(b.Instructions) != 2 {
		return 0, false
	}
	return s.endsInTopCopyTest(b)
}

// endsInTopCopyTest is like isTopCopyTest but allows any number of
// instructions before the idiom.
func (s *Script) endsInTopCopyTest(b *Block) (Opcode, bool) {
	n := len(b.Instructions)
	if n < 2 {
		return 0, false
	}
	cp := &s.instructions[b.Instructions[n-2]]
	jmp := &s.instructions[b.Instructions[n-1]]
	if cp.Opcode != OpCPTOPSP || cp.Args[0] != -4 || cp.Args[1] != 4 {
		return 0, false
	}
	if !jmp.Opcode.IsConditional() {
		return 0, false
	}
	return jmp.Opcode, true
}

// findDeadEdges marks edges that can never be taken. Short-circuit
// evaluation of && and || chains duplicates the running result with
// CPTOPSP -4 4 and tests it again. When a block does nothing but that
// re-test, and every way into it already tested the same value with the
// same jump, only the edge agreeing with the incoming polarity is live.
func (s *Script) findDeadEdges() {
	for _, bid := range s.blockOrder {
		b := &s.blocks[bid]
		op, ok := s.isTopCopyTest(b)
		if !ok || len(b.Children) != 2 || len(b.Parents) == 0 {
			continue
		}

		polarity := EdgeType(0)
		consistent := true
		for i, pe := range b.Parents {
			p := &s.blocks[pe.Block]
			pop, ok := s.endsInTopCopyTest(p)
			if !ok || pop != op || !pe.Type.IsConditional() {
				consistent = false
				break
			}
			if i == 0 {
				polarity = pe.Type
			} else if pe.Type != polarity {
				consistent = false
				break
			}
		}
		if !consistent {
			continue
		}

		for i := range b.Children {
			if b.Children[i].Type != polarity {
				s.markDead(bid, i)
			}
		}
	}
}

func (s *Script) markDead(parent BlockID, childIdx int) {
	e := &s.blocks[parent].Children[childIdx]
	child := &s.blocks[e.Block]
	for i := range child.Parents {
		if child.Parents[i].Block == parent && child.Parents[i].Type == e.Type {
			child.Parents[i].Type = EdgeDead
			break
		}
	}
	glog.V(2).Infof("block %08X: %s edge to %08X is dead", s.blocks[parent].Address, e.Type, child.Address)
	e.Type = EdgeDead
}
