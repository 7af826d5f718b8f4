package nwscript

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoremi/nwscript-go/internal/nwscripttest"
)

// globalsProgram keeps one global int and increments it from main.
func globalsProgram() *nwscripttest.Assembler {
	a := nwscripttest.New()
	a.JSR("global").RETN()
	a.Label("global")
	a.Label("g").RSADD(nwscripttest.TypeInt).ConstI(5).CPDOWNSP(-8, 4).MOVSP(-4)
	a.SAVEBP().JSR("main").RESTOREBP()
	a.MOVSP(-4).RETN()
	a.Label("main")
	a.Label("read").CPTOPBP(-4, 4).ConstI(1).Op(nwscripttest.OpADD, nwscripttest.TypeIntInt)
	a.Label("write").CPDOWNBP(-4, 4).MOVSP(-4)
	a.RETN()
	return a
}

// condProgram is a StartingConditional returning 1.
func condProgram() *nwscripttest.Assembler {
	a := nwscripttest.New()
	a.Label("slot").RSADD(nwscripttest.TypeInt).JSR("main").RETN()
	a.Label("main").ConstI(1).CPDOWNSP(-8, 4).MOVSP(-4).RETN()
	return a
}

func TestPartition(t *testing.T) {
	for name, a := range map[string]*nwscripttest.Assembler{
		"minimal":    minimal(),
		"add":        addProgram(),
		"globals":    globalsProgram(),
		"cond":       condProgram(),
		"storestate": storeStateProgram(),
		"do-while":   doWhileProgram(),
		"dead code":  deadCodeProgram(),
	} {
		t.Run(name, func(t *testing.T) {
			s := mustParse(t, a)
			owner := map[BlockID]SubRoutineID{}
			for _, sub := range s.SubRoutines() {
				require.NotEmpty(t, sub.Blocks)
				assert.Equal(t, sub.Address, s.Block(sub.Blocks[0]).Address)
				for _, bid := range sub.Blocks {
					_, dup := owner[bid]
					assert.False(t, dup, "block %08X in two subroutines", s.Block(bid).Address)
					owner[bid] = sub.ID
					assert.Equal(t, sub.ID, s.Block(bid).SubRoutine)
				}
			}
			assert.Len(t, owner, len(s.Blocks()))
		})
	}
}

func TestClassifyMinimal(t *testing.T) {
	a := minimal()
	s := mustParse(t, a)

	subs := s.SubRoutines()
	require.Len(t, subs, 2)
	entry, ok := s.EntrySubRoutine()
	require.True(t, ok)
	assert.Equal(t, SubRoutineStart, entry.Type)
	assert.Equal(t, "_start", entry.DisplayName())
	assert.Len(t, entry.Blocks, 2)

	main, ok := s.MainSubRoutine()
	require.True(t, ok)
	assert.Equal(t, SubRoutineMain, main.Type)
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, a.LabelAddr("main"), main.Address)
	assert.Equal(t, []SubRoutineID{entry.ID}, main.Callers)
	assert.Equal(t, []SubRoutineID{main.ID}, entry.Callees)
	assert.Len(t, main.Returns, 1)

	_, ok = s.GlobalSubRoutine()
	assert.False(t, ok)
}

func TestClassifyGlobals(t *testing.T) {
	a := globalsProgram()
	s := mustParse(t, a)

	require.Len(t, s.SubRoutines(), 3)
	global, ok := s.GlobalSubRoutine()
	require.True(t, ok)
	assert.Equal(t, SubRoutineGlobal, global.Type)
	assert.Equal(t, "_global", global.Name)

	main, ok := s.MainSubRoutine()
	require.True(t, ok)
	assert.Equal(t, a.LabelAddr("main"), main.Address)
	assert.Equal(t, []SubRoutineID{global.ID}, main.Callers)
}

func TestClassifyStartingConditional(t *testing.T) {
	s := mustParse(t, condProgram())
	main, ok := s.MainSubRoutine()
	require.True(t, ok)
	assert.Equal(t, SubRoutineStartCond, main.Type)
	assert.Equal(t, "StartingConditional", main.DisplayName())
}

func TestClassifyStoreState(t *testing.T) {
	a := storeStateProgram()
	s := mustParse(t, a)

	sub, ok := s.SubRoutineByAddress(a.LabelAddr("deferred"))
	require.True(t, ok)
	assert.Equal(t, SubRoutineStoreState, sub.Type)
	assert.Equal(t, fmt.Sprintf("sub_%08X", a.LabelAddr("deferred")), sub.DisplayName())
	assert.Empty(t, sub.Callers)
}

func TestNoMainIsSoft(t *testing.T) {
	a := nwscripttest.New()
	a.ConstI(1).MOVSP(-4).RETN()
	s, err := Parse(a.Bytes(), table)
	require.NoError(t, err)

	_, ok := s.MainSubRoutine()
	assert.False(t, ok)
	entry, ok := s.EntrySubRoutine()
	require.True(t, ok)
	assert.Equal(t, SubRoutineStart, entry.Type)

	err = s.AnalyzeStack()
	requireKind(t, err, KindSoft)
	assert.True(t, errors.Is(err, ErrNoMainSubRoutine))
	assert.True(t, IsSoft(err))
	assert.False(t, s.HasStackAnalysis())
}

func TestBlockInTwoSubRoutines(t *testing.T) {
	a := nwscripttest.New()
	a.JSR("sub").JMP("shared")
	a.Label("sub").JMP("shared")
	a.Label("shared").RETN()
	_, err := Parse(a.Bytes(), table)
	requireKind(t, err, KindStructural)
}

func TestSubRoutineEntryCalled(t *testing.T) {
	a := nwscripttest.New()
	a.Label("start").JSR("main").RETN()
	a.Label("main").JSR("start").RETN()
	_, err := Parse(a.Bytes(), table)
	requireKind(t, err, KindStructural)
}
