// Package gamedef describes the games that compile NWScript: their engine
// types, string code page and engine function tables.
package gamedef

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/yoremi/nwscript-go/pkg/encoding"
	"github.com/yoremi/nwscript-go/pkg/nwscript"
)

// GameID identifies a game.
type GameID int

const (
	GameNWN GameID = iota
	GameNWN2
	GameKotOR
	GameKotOR2
	GameJade
	GameWitcher
	GameDragonAge
	GameDragonAge2
)

var gameNames = []string{"nwn", "nwn2", "kotor", "kotor2", "jade", "witcher", "dragonage", "dragonage2"}

func (g GameID) String() string {
	if int(g) < 0 || int(g) >= len(gameNames) {
		return "unknown"
	}
	return gameNames[g]
}

// Games returns every known game.
func Games() []GameID {
	out := make([]GameID, len(gameNames))
	for i := range gameNames {
		out[i] = GameID(i)
	}
	return out
}

// ParseGame returns the game from its short name or a common alias.
func ParseGame(name string) (GameID, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "nwn1", "neverwinter":
		return GameNWN, nil
	case "kotor1", "swkotor":
		return GameKotOR, nil
	case "tsl", "swkotor2":
		return GameKotOR2, nil
	case "da", "dao":
		return GameDragonAge, nil
	case "da2":
		return GameDragonAge2, nil
	}
	for i, g := range gameNames {
		if g == n {
			return GameID(i), nil
		}
	}
	return 0, errors.Errorf("unknown game %q (want one of %s)", name, strings.Join(gameNames, ", "))
}

// GameDef holds the engine metadata of one game.
type GameDef struct {
	ID    GameID
	Title string
	By    string // Publisher

	Encoding encoding.Type

	// EngineTypes names engine type slots E0..E5; an empty name falls
	// back to the slot name.
	EngineTypes []string

	Functions map[int]nwscript.Function
}

// NewGame creates a game definition without functions.
func NewGame(id GameID, title, by string, enc encoding.Type, engineTypes []string) *GameDef {
	return &GameDef{
		ID:          id,
		Title:       title,
		By:          by,
		Encoding:    enc,
		EngineTypes: engineTypes,
		Functions:   map[int]nwscript.Function{},
	}
}

// Function implements nwscript.FunctionTable.
func (g *GameDef) Function(index int) (nwscript.Function, bool) {
	f, ok := g.Functions[index]
	return f, ok
}

// EngineTypeName implements nwscript.FunctionTable.
func (g *GameDef) EngineTypeName(n int) string {
	if n >= 0 && n < len(g.EngineTypes) && g.EngineTypes[n] != "" {
		return g.EngineTypes[n]
	}
	return fmt.Sprintf("E%d", n)
}

// Indices returns the defined function indices in ascending order.
func (g *GameDef) Indices() []int {
	out := make([]int, 0, len(g.Functions))
	for i := range g.Functions {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Define parses prototype and stores it at index.
func (g *GameDef) Define(index int, prototype string) error {
	f, err := ParsePrototype(prototype, g.EngineTypes)
	if err != nil {
		return errors.Wrapf(err, "function %d", index)
	}
	g.Functions[index] = f
	return nil
}

var _ nwscript.FunctionTable = (*GameDef)(nil)
