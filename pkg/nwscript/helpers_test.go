package nwscript

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yoremi/nwscript-go/internal/nwscripttest"
)

// testTable is a small engine function table.
type testTable map[int]Function

func (t testTable) Function(i int) (Function, bool) {
	f, ok := t[i]
	return f, ok
}

func (t testTable) EngineTypeName(n int) string { return fmt.Sprintf("E%d", n) }

var table = testTable{
	0: {Name: "Random", Return: TypeInt, Params: []Type{TypeInt}},
	1: {Name: "PrintString", Return: TypeVoid, Params: []Type{TypeString}},
	4: {Name: "PrintInteger", Return: TypeVoid, Params: []Type{TypeInt}},
	7: {Name: "DelayCommand", Return: TypeVoid, Params: []Type{TypeFloat, TypeScriptState}},
	27: {Name: "GetPosition", Return: TypeVector, Params: []Type{TypeObject}},
	36: {Name: "VectorMagnitude", Return: TypeFloat, Params: []Type{TypeVector}},
}

func mustParse(t *testing.T, a *nwscripttest.Assembler) *Script {
	t.Helper()
	s, err := Parse(a.Bytes(), table)
	require.NoError(t, err)
	return s
}

// blockAt returns the block starting at the address of label.
func blockAt(t *testing.T, s *Script, a *nwscripttest.Assembler, label string) *Block {
	t.Helper()
	in, ok := s.FindInstruction(a.LabelAddr(label))
	require.True(t, ok, "no instruction at %s", label)
	require.NotEqual(t, NoBlock, in.Block)
	b := s.Block(in.Block)
	require.Equal(t, in.Address, b.Address, "%s does not start a block", label)
	return b
}

func instAt(t *testing.T, s *Script, a *nwscripttest.Assembler, label string) *Instruction {
	t.Helper()
	in, ok := s.FindInstruction(a.LabelAddr(label))
	require.True(t, ok, "no instruction at %s", label)
	return in
}

func idAt(t *testing.T, s *Script, a *nwscripttest.Assembler, label string) InstructionID {
	t.Helper()
	addr := a.LabelAddr(label)
	for i := range s.Instructions() {
		if s.Instructions()[i].Address == addr {
			return InstructionID(i)
		}
	}
	t.Fatalf("no instruction at %s", label)
	return NoInstruction
}

// minimal is _start calling a main that pushes 42.
func minimal() *nwscripttest.Assembler {
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main").Label("const").ConstI(42).RETN()
	return a
}

// addProgram calls int add(int a, int b) twice.
func addProgram() *nwscripttest.Assembler {
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main")
	a.Label("ret1").RSADD(nwscripttest.TypeInt).ConstI(2).Label("arg1").ConstI(1).Label("call1").JSR("add")
	a.MOVSP(-4)
	a.Label("ret2").RSADD(nwscripttest.TypeInt).ConstI(4).Label("arg2").ConstI(3).Label("call2").JSR("add")
	a.MOVSP(-4)
	a.RETN()
	a.Label("add")
	a.CPTOPSP(-4, 4).CPTOPSP(-12, 4).Op(nwscripttest.OpADD, nwscripttest.TypeIntInt)
	a.Label("store").CPDOWNSP(-16, 4).MOVSP(-4).MOVSP(-8)
	a.RETN()
	return a
}
