package nwscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoremi/nwscript-go/internal/nwscripttest"
)

// ifElseProgram pushes a different value on each arm and pops it after
// the arms meet.
func ifElseProgram() *nwscripttest.Assembler {
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main").Label("cond").ConstI(1).JZ("else")
	a.Label("then").ConstI(2).JMP("end")
	a.Label("else").ConstI(3)
	a.Label("end").MOVSP(-4).RETN()
	return a
}

// ifProgram has a single arm that falls through to skip.
func ifProgram() *nwscripttest.Assembler {
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main").Label("cond").ConstI(1).JZ("skip")
	a.Label("body").ConstI(2).MOVSP(-4)
	a.Label("skip").RETN()
	return a
}

// whileProgram loops while a constant holds.
func whileProgram() *nwscripttest.Assembler {
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main").Label("head").ConstI(1).JZ("exit")
	a.Label("body").NOP().JMP("head")
	a.Label("exit").RETN()
	return a
}

// doWhileProgram is a do-while with a break and a continue in its body.
func doWhileProgram() *nwscripttest.Assembler {
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main").Label("H").ConstI(1).JZ("L1")
	a.Label("B").JMP("N")
	a.Label("L1").ConstI(2).JZ("L2")
	a.Label("K").JMP("T")
	a.Label("L2").ConstI(3).JZ("N")
	a.Label("T").JMP("H")
	a.Label("N").RETN()
	return a
}

func mustControlFlow(t *testing.T, a *nwscripttest.Assembler) *Script {
	t.Helper()
	s := mustAnalyze(t, a)
	require.NoError(t, s.AnalyzeControlFlow())
	return s
}

func requireControl(t *testing.T, b *Block, ct ControlType) ControlStructure {
	t.Helper()
	c, ok := b.Control(ct)
	require.True(t, ok, "block %08X is not tagged %v (tags %v)", b.Address, ct, b.Controls)
	return c
}

func TestIfElse(t *testing.T) {
	a := ifElseProgram()
	s := mustControlFlow(t, a)

	cond, then := blockAt(t, s, a, "cond"), blockAt(t, s, a, "then")
	els, end := blockAt(t, s, a, "else"), blockAt(t, s, a, "end")

	c := requireControl(t, cond, ControlIfCond)
	assert.Equal(t, then.ID, c.IfTrue)
	assert.Equal(t, els.ID, c.IfElse)
	assert.Equal(t, end.ID, c.IfNext)
	assert.Equal(t, c, ifControl(ControlIfCond, cond.ID, then.ID, els.ID, end.ID))

	assert.True(t, then.Is(ControlIfTrue))
	assert.True(t, els.Is(ControlIfElse))
	assert.True(t, end.Is(ControlIfNext))
	assert.True(t, end.Is(ControlReturn))
}

func TestPlainIf(t *testing.T) {
	a := ifProgram()
	s := mustControlFlow(t, a)

	cond, body, skip := blockAt(t, s, a, "cond"), blockAt(t, s, a, "body"), blockAt(t, s, a, "skip")
	c := requireControl(t, cond, ControlIfCond)
	assert.Equal(t, body.ID, c.IfTrue)
	assert.Equal(t, NoBlock, c.IfElse)
	assert.Equal(t, skip.ID, c.IfNext)
	assert.True(t, body.Is(ControlIfTrue))
	assert.True(t, skip.Is(ControlIfNext))
	assert.False(t, skip.Is(ControlIfElse))
}

func TestWhile(t *testing.T) {
	a := whileProgram()
	s := mustControlFlow(t, a)

	head, body, exit := blockAt(t, s, a, "head"), blockAt(t, s, a, "body"), blockAt(t, s, a, "exit")
	want := loopControl(ControlWhileHead, head.ID, body.ID, exit.ID)
	assert.Equal(t, want, requireControl(t, head, ControlWhileHead))
	assert.True(t, body.Is(ControlWhileTail))
	assert.True(t, exit.Is(ControlWhileNext))
	assert.False(t, head.Is(ControlDoWhileHead))

	// The loop condition is an if whose next is the loop exit.
	c := requireControl(t, head, ControlIfCond)
	assert.Equal(t, body.ID, c.IfTrue)
	assert.Equal(t, exit.ID, c.IfNext)
}

func TestDoWhile(t *testing.T) {
	a := doWhileProgram()
	s := mustControlFlow(t, a)

	H, T, N := blockAt(t, s, a, "H"), blockAt(t, s, a, "T"), blockAt(t, s, a, "N")
	for _, tt := range []struct {
		b  *Block
		ct ControlType
	}{
		{H, ControlDoWhileHead},
		{T, ControlDoWhileTail},
		{N, ControlDoWhileNext},
		{blockAt(t, s, a, "B"), ControlBreak},
		{blockAt(t, s, a, "K"), ControlContinue},
	} {
		c := requireControl(t, tt.b, tt.ct)
		assert.Equal(t, loopControl(tt.ct, H.ID, T.ID, N.ID), c)
	}
	assert.False(t, H.Is(ControlWhileHead))

	// The closing test only gets the condition tag.
	L2 := blockAt(t, s, a, "L2")
	c := requireControl(t, L2, ControlIfCond)
	assert.Equal(t, T.ID, c.IfTrue)
	assert.Equal(t, N.ID, c.IfNext)
	assert.False(t, T.Is(ControlIfTrue))

	// An arm that breaks out still makes a plain if.
	c = requireControl(t, H, ControlIfCond)
	assert.Equal(t, blockAt(t, s, a, "L1").ID, c.IfNext)
	assert.Equal(t, NoBlock, c.IfElse)
}

func TestReturnTags(t *testing.T) {
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main").ConstI(1).JZ("out")
	a.Label("jump").JMP("ret")
	a.Label("out").NOP()
	a.Label("ret").RETN()
	s := mustControlFlow(t, a)

	ret := blockAt(t, s, a, "ret")
	c := requireControl(t, blockAt(t, s, a, "jump"), ControlReturn)
	assert.Equal(t, ret.ID, c.Return)
	c = requireControl(t, ret, ControlReturn)
	assert.Equal(t, ret.ID, c.Return)
	assert.False(t, blockAt(t, s, a, "out").Is(ControlReturn))
}

func TestLoopOrdering(t *testing.T) {
	for name, a := range map[string]*nwscripttest.Assembler{
		"while":    whileProgram(),
		"do-while": doWhileProgram(),
	} {
		t.Run(name, func(t *testing.T) {
			s := mustControlFlow(t, a)
			heads := 0
			for _, b := range s.Blocks() {
				if !b.IsLoopHead() {
					continue
				}
				heads++
				for _, c := range b.Controls {
					if c.LoopHead == NoBlock {
						continue
					}
					h, tl, n := s.Block(c.LoopHead), s.Block(c.LoopTail), s.Block(c.LoopNext)
					assert.Less(t, h.Address, tl.Address)
					assert.Less(t, tl.Address, n.Address)
				}
			}
			assert.Equal(t, 1, heads)
		})
	}
}

func TestUnexplainedBackEdge(t *testing.T) {
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main").Label("spin").ConstI(1).JNZ("spin")
	a.RETN()
	s := mustAnalyze(t, a)
	e := requireKind(t, s.AnalyzeControlFlow(), KindStructural)
	assert.Equal(t, a.LabelAddr("spin"), e.Address)
	assert.False(t, s.HasControlFlowAnalysis())
}

func TestDeadEdgeSkipsIf(t *testing.T) {
	a := deadEdgeProgram()
	s := mustControlFlow(t, a)
	assert.False(t, blockAt(t, s, a, "B").Is(ControlIfCond))
	assert.True(t, blockAt(t, s, a, "A").Is(ControlIfCond))
}

func TestAnalyzeControlFlowIdempotent(t *testing.T) {
	a := doWhileProgram()
	s := mustControlFlow(t, a)
	var before [][]ControlStructure
	for _, b := range s.Blocks() {
		before = append(before, append([]ControlStructure(nil), b.Controls...))
	}
	require.NoError(t, s.AnalyzeControlFlow())
	for i, b := range s.Blocks() {
		assert.Equal(t, before[i], b.Controls)
	}
}
