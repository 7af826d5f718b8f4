package gamedef

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoremi/nwscript-go/pkg/config"
	"github.com/yoremi/nwscript-go/pkg/encoding"
	"github.com/yoremi/nwscript-go/pkg/nwscript"
)

func TestParseGame(t *testing.T) {
	for _, g := range Games() {
		got, err := ParseGame(strings.ToUpper(g.String()))
		require.NoError(t, err)
		assert.Equal(t, g, got)
	}
	got, err := ParseGame("tsl")
	require.NoError(t, err)
	assert.Equal(t, GameKotOR2, got)

	_, err = ParseGame("baldur")
	assert.Error(t, err)
	assert.Equal(t, "unknown", GameID(99).String())
}

func TestParsePrototype(t *testing.T) {
	engine := []string{"effect", "event", "location"}
	tests := []struct {
		proto string
		want  nwscript.Function
	}{
		{"int Random(int nMaxInteger)",
			nwscript.Function{Name: "Random", Return: nwscript.TypeInt, Params: []nwscript.Type{nwscript.TypeInt}}},
		{"void ActionRandomWalk();",
			nwscript.Function{Name: "ActionRandomWalk", Return: nwscript.TypeVoid}},
		{"string FloatToString(float fFloat, int nWidth=18, int nDecimals=9)",
			nwscript.Function{Name: "FloatToString", Return: nwscript.TypeString,
				Params: []nwscript.Type{nwscript.TypeFloat, nwscript.TypeInt, nwscript.TypeInt}, Defaults: 2}},
		{"void DelayCommand(float fSeconds, action aActionToDelay)",
			nwscript.Function{Name: "DelayCommand", Return: nwscript.TypeVoid,
				Params: []nwscript.Type{nwscript.TypeFloat, nwscript.TypeScriptState}}},
		{"location Location(object oArea, vector vPosition=[0.0,0.0,0.0], float fOrientation=0.0)",
			nwscript.Function{Name: "Location", Return: nwscript.EngineType(2),
				Params: []nwscript.Type{nwscript.TypeObject, nwscript.TypeVector, nwscript.TypeFloat}, Defaults: 2}},
		{"void ApplyEffect(effect e, E1 ev, int[] list)",
			nwscript.Function{Name: "ApplyEffect", Return: nwscript.TypeVoid,
				Params: []nwscript.Type{nwscript.EngineType(0), nwscript.EngineType(1), nwscript.ArrayOf(nwscript.TypeInt)}}},
	}
	for _, tt := range tests {
		got, err := ParsePrototype(tt.proto, engine)
		require.NoError(t, err, tt.proto)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", tt.proto, diff)
		}
	}
}

func TestParsePrototypeErrors(t *testing.T) {
	for _, proto := range []string{
		"Random(int n)",
		"int Random int n",
		"int Random(widget w)",
		"int F(int a=1, int b)",
		"int F(int a b c)",
	} {
		_, err := ParsePrototype(proto, nil)
		assert.Error(t, err, proto)
	}
}

func TestBuiltin(t *testing.T) {
	for _, id := range Games() {
		g, err := Builtin(id)
		require.NoError(t, err, id.String())
		f, ok := g.Function(7)
		require.True(t, ok)
		assert.Equal(t, "DelayCommand", f.Name)
	}

	nwn, err := Builtin(GameNWN)
	require.NoError(t, err)
	f, ok := nwn.Function(21)
	require.True(t, ok)
	assert.Equal(t, nwscript.EngineType(2), f.Params[0])
	assert.Equal(t, "location", nwn.EngineTypeName(2))
	assert.Equal(t, "E5", nwn.EngineTypeName(5))
	assert.Equal(t, 0, nwn.Indices()[0])

	kotor, err := Builtin(GameKotOR)
	require.NoError(t, err)
	_, ok = kotor.Function(21)
	assert.False(t, ok)
}

const kotorTable = `
game: kotor
encoding: cp1251
functions:
  11: int SwitchPlayerCharacter(int nNPC)
  0: int Random(int nMax)
`

func TestApplyTable(t *testing.T) {
	tbl, err := LoadTable(strings.NewReader(kotorTable))
	require.NoError(t, err)
	r, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, r.Apply(tbl))

	g, ok := r.Game(GameKotOR)
	require.True(t, ok)
	assert.Equal(t, encoding.CP1251, g.Encoding)
	f, ok := g.Function(11)
	require.True(t, ok)
	assert.Equal(t, "SwitchPlayerCharacter", f.Name)
	assert.Len(t, g.Functions, len(common)+1)
}

func TestLoadTableErrors(t *testing.T) {
	tests := map[string]string{
		"no game":       "functions:\n  0: int Random(int n)\n",
		"unknown field": "game: nwn\nextra: 1\n",
		"not yaml":      "game: [",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTable(strings.NewReader(in))
			assert.Error(t, err)
		})
	}

	r, err := NewRegistry()
	require.NoError(t, err)
	assert.Error(t, r.Apply(&Table{Game: "nwn", Encoding: "klingon"}))
	assert.Error(t, r.Apply(&Table{Game: "nwn", Functions: map[int]string{3: "bogus"}}))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kotor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(kotorTable), 0o644))
	r, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, r.LoadFile(path))
	g, _ := r.Game(GameKotOR)
	_, ok := g.Function(11)
	assert.True(t, ok)

	assert.Error(t, r.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))

	// Bare names are looked up in the table directories.
	t.Setenv(config.EnvTables, filepath.Dir(path))
	require.NoError(t, r.LoadFile("kotor.yaml"))
}
