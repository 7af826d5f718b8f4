package nwscript

import "strings"

// Function is the signature of one engine function called by ACTION.
type Function struct {
	Name   string
	Return Type
	Params []Type
	// Defaults counts the trailing parameters that may be omitted.
	Defaults int
}

func (f Function) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	return f.Return.String() + " " + f.Name + "(" + strings.Join(params, ", ") + ")"
}

// FunctionTable resolves engine function signatures for one game.
type FunctionTable interface {
	// Function returns the signature of engine function index.
	Function(index int) (Function, bool)
	// EngineTypeName returns the game's name for engine type slot n,
	// e.g. "effect" for slot 0 in Neverwinter Nights.
	EngineTypeName(n int) string
}

// slotSize returns the number of stack slots a value of type t occupies.
// Action parameters are captured by STORESTATE and take none.
func slotSize(t Type) int {
	switch t {
	case TypeScriptState, TypeVoid:
		return 0
	case TypeVector:
		return 3
	}
	return 1
}
