package disasm

import (
	"fmt"
	"strings"

	"github.com/yoremi/nwscript-go/pkg/nwscript"
)

// namer gives stack variables and types their source names. Variables that
// share a slot across merging paths share a name.
type namer struct {
	s     *nwscript.Script
	names map[nwscript.VariableID]string
}

func newNamer(s *nwscript.Script) *namer {
	return &namer{s: s, names: map[nwscript.VariableID]string{}}
}

// typeName spells t the way the game's nwscript.nss does.
func (n *namer) typeName(t nwscript.Type) string {
	switch {
	case t.IsReference():
		return n.typeName(t.Elem()) + "&"
	case t.IsArray():
		return n.typeName(t.Elem()) + "[]"
	case t.IsEngineType():
		if table := n.s.FunctionTable(); table != nil {
			return table.EngineTypeName(int(t - nwscript.TypeEngineType0))
		}
	case t == nwscript.TypeAny:
		return "int"
	}
	return t.String()
}

// prefix is the Hungarian-notation prefix NWScript authors use.
func (n *namer) prefix(t nwscript.Type) string {
	switch {
	case t.IsArray():
		return "a"
	case t.IsReference():
		return n.prefix(t.Elem())
	}
	switch t {
	case nwscript.TypeInt, nwscript.TypeAny:
		return "n"
	case nwscript.TypeFloat:
		return "f"
	case nwscript.TypeString:
		return "s"
	case nwscript.TypeResource:
		return "r"
	case nwscript.TypeObject:
		return "o"
	case nwscript.TypeVector:
		return "v"
	case nwscript.TypeStruct:
		return "st"
	}
	if t.IsEngineType() {
		return strings.ToLower(n.typeName(t)[:1])
	}
	return "x"
}

// root returns the lowest id in v's sibling group.
func (n *namer) root(v nwscript.VariableID) nwscript.VariableID {
	best := v
	seen := map[nwscript.VariableID]bool{v: true}
	work := []nwscript.VariableID{v}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		if cur < best {
			best = cur
		}
		for _, sib := range n.s.Variable(cur).Siblings {
			if !seen[sib] {
				seen[sib] = true
				work = append(work, sib)
			}
		}
	}
	return best
}

func (n *namer) name(v nwscript.VariableID) string {
	if v == nwscript.NoVariable {
		return "?"
	}
	r := n.root(v)
	if name, ok := n.names[r]; ok {
		return name
	}
	vr := n.s.Variable(r)
	kind := "Var"
	switch vr.Use {
	case nwscript.UseGlobal:
		kind = "Global"
	case nwscript.UseParameter:
		kind = "Param"
	case nwscript.UseReturn:
		kind = "Ret"
	}
	name := fmt.Sprintf("%s%s%d", n.prefix(vr.Type), kind, r)
	n.names[r] = name
	return name
}
