package nwscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoremi/nwscript-go/internal/nwscripttest"
)

func TestMinimalBlocks(t *testing.T) {
	a := minimal()
	s := mustParse(t, a)

	// [JSR main] [RETN] for _start, and main on its own.
	blocks := s.Blocks()
	require.Len(t, blocks, 3)

	start := blocks[0]
	require.Len(t, start.Children, 2)
	assert.Equal(t, Edge{Block: blockAt(t, s, a, "main").ID, Type: EdgeSubRoutineCall}, start.Children[0])
	assert.Equal(t, EdgeSubRoutineTail, start.Children[1].Type)
	assert.Equal(t, blocks[1].ID, start.Children[1].Block)

	main := blockAt(t, s, a, "main")
	assert.Len(t, main.Instructions, 2)
	assert.Empty(t, main.Children)
}

// expectedChildren returns how many child edges the block's last
// instruction implies.
func expectedChildren(s *Script, b *Block) int {
	if b.Unreachable {
		return 0
	}
	in := s.Instruction(b.Last())
	switch in.Opcode {
	case OpRETN:
		return 0
	case OpJMP:
		return 1
	case OpJZ, OpJNZ:
		return 2
	case OpJSR, OpSTORESTATE:
		if in.Follower == NoInstruction {
			return 1
		}
		return 2
	}
	if in.Follower == NoInstruction {
		return 0
	}
	return 1
}

func TestBlockEdgeCounts(t *testing.T) {
	for name, a := range map[string]*nwscripttest.Assembler{
		"minimal":    minimal(),
		"add":        addProgram(),
		"if-else":    ifElseProgram(),
		"do-while":   doWhileProgram(),
		"dead edge":  deadEdgeProgram(),
		"storestate": storeStateProgram(),
		"dead code":  deadCodeProgram(),
	} {
		t.Run(name, func(t *testing.T) {
			s := mustParse(t, a)
			for _, b := range s.Blocks() {
				assert.Equal(t, expectedChildren(s, b), len(b.Children), "block %08X", b.Address)
				for _, c := range b.Children {
					found := false
					for _, p := range s.Block(c.Block).Parents {
						if p.Block == b.ID && p.Type == c.Type {
							found = true
						}
					}
					assert.True(t, found, "edge %08X -> %08X has no parent link", b.Address, s.Block(c.Block).Address)
				}
				for i, id := range b.Instructions {
					in := s.Instruction(id)
					assert.Equal(t, b.ID, in.Block)
					if i > 0 {
						assert.Equal(t, AddressPlain, in.AddressType, "label inside block %08X", b.Address)
					}
				}
			}
		})
	}
}

// deadEdgeProgram re-tests a duplicated value that is known to be non-zero.
func deadEdgeProgram() *nwscripttest.Assembler {
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main").Label("A").ConstI(1).CPTOPSP(-4, 4).JZ("L")
	a.Label("B").CPTOPSP(-4, 4).JZ("L")
	a.Label("X").NOP()
	a.Label("L").MOVSP(-4).RETN()
	return a
}

func TestDeadEdge(t *testing.T) {
	a := deadEdgeProgram()
	s := mustParse(t, a)

	A, B := blockAt(t, s, a, "A"), blockAt(t, s, a, "B")
	X, L := blockAt(t, s, a, "X"), blockAt(t, s, a, "L")

	assert.Equal(t, []Edge{{B.ID, EdgeConditionalTrue}, {L.ID, EdgeConditionalFalse}}, A.Children)
	assert.Equal(t, []Edge{{X.ID, EdgeConditionalTrue}, {L.ID, EdgeDead}}, B.Children)
	assert.Equal(t, []Edge{{A.ID, EdgeConditionalTrue}}, B.Parents)
	assert.Equal(t, []Edge{{X.ID, EdgeUnconditional}, {B.ID, EdgeDead}, {A.ID, EdgeConditionalFalse}}, L.Parents)
	assert.Equal(t, []Edge{{L.ID, EdgeUnconditional}}, X.Children)
}

func TestNoDeadEdgeOnMixedPolarity(t *testing.T) {
	// B is entered through main's true edge and C's false edge.
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main").ConstI(1).CPTOPSP(-4, 4).JZ("C")
	a.Label("B").CPTOPSP(-4, 4).JZ("L")
	a.NOP().JMP("L")
	a.Label("C").CPTOPSP(-4, 4).JZ("B")
	a.Label("L").MOVSP(-4).RETN()
	s := mustParse(t, a)

	B, C, L := blockAt(t, s, a, "B"), blockAt(t, s, a, "C"), blockAt(t, s, a, "L")
	for _, e := range B.Children {
		assert.NotEqual(t, EdgeDead, e.Type)
	}
	// C itself is only entered with a zero value.
	assert.Equal(t, []Edge{{L.ID, EdgeDead}, {B.ID, EdgeConditionalFalse}}, C.Children)
}

// deadCodeProgram returns early from the if arm; the compiler still emits
// the jump over the rest.
func deadCodeProgram() *nwscripttest.Assembler {
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main").Label("cond").ConstI(1).JZ("skip")
	a.Label("early").RETN()
	a.Label("dead").NOP().JMP("skip")
	a.Label("skip").RETN()
	return a
}

func TestUnreachableCode(t *testing.T) {
	a := deadCodeProgram()
	s := mustParse(t, a)

	for _, in := range s.Instructions() {
		assert.NotEqual(t, NoBlock, in.Block, "instruction %08X has no block", in.Address)
	}
	dead := blockAt(t, s, a, "dead")
	assert.True(t, dead.Unreachable)
	assert.Len(t, dead.Instructions, 2)
	assert.Empty(t, dead.Parents)
	assert.Empty(t, dead.Children)
	assert.False(t, blockAt(t, s, a, "skip").Unreachable)

	main, ok := s.MainSubRoutine()
	require.True(t, ok)
	assert.Equal(t, main.ID, dead.SubRoutine)
	assert.Contains(t, main.Blocks, dead.ID)
	assert.Len(t, s.SubRoutines(), 2)

	require.NoError(t, s.AnalyzeStack())
	assert.Nil(t, instAt(t, s, a, "dead").Stack)
	require.NoError(t, s.AnalyzeControlFlow())
	assert.Empty(t, dead.Controls)
	assert.True(t, blockAt(t, s, a, "cond").Is(ControlIfCond))
}
