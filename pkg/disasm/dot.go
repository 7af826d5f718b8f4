package disasm

import (
	"fmt"
	"strings"

	"github.com/yoremi/nwscript-go/pkg/nwscript"
)

var edgeStyles = map[nwscript.EdgeType]string{
	nwscript.EdgeUnconditional:    "",
	nwscript.EdgeConditionalTrue:  `color="darkgreen"`,
	nwscript.EdgeConditionalFalse: `color="red"`,
	nwscript.EdgeSubRoutineCall:   `style="dotted", color="blue"`,
	nwscript.EdgeSubRoutineTail:   `style="dotted"`,
	nwscript.EdgeSubRoutineStore:  `style="dotted", color="purple"`,
	nwscript.EdgeDead:             `style="dashed", color="gray"`,
}

func dotEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// WriteDot writes the block graph in Graphviz format, one cluster per
// subroutine. Control-structure tags are listed under each block.
func (w *Writer) WriteDot(s *nwscript.Script) error {
	names := labels(s)
	w.printf("digraph \"ncs\" {\n")
	w.printf("\tnode [shape=box, fontname=\"monospace\"];\n")

	for i, sub := range s.SubRoutines() {
		w.printf("\tsubgraph \"cluster_%d\" {\n", i)
		w.printf("\t\tlabel=\"%s\";\n", dotEscape(sub.DisplayName()))
		for _, bid := range sub.Blocks {
			b := s.Block(bid)
			var sb strings.Builder
			fmt.Fprintf(&sb, "%08X\\l", b.Address)
			for _, id := range b.Instructions {
				in := s.Instruction(id)
				text := mnemonic(in)
				if ops := w.operands(s, in, names); ops != "" {
					text += " " + ops
				}
				sb.WriteString(dotEscape(text) + "\\l")
			}
			for _, c := range b.Controls {
				fmt.Fprintf(&sb, "[%s]\\l", c.Type)
			}
			if b.Unreachable {
				w.printf("\t\tb%d [label=\"%s\", style=dashed, color=gray];\n", b.ID, sb.String())
				continue
			}
			w.printf("\t\tb%d [label=\"%s\"];\n", b.ID, sb.String())
		}
		w.printf("\t}\n")
	}

	for _, b := range s.Blocks() {
		for _, e := range b.Children {
			if style := edgeStyles[e.Type]; style != "" {
				w.printf("\tb%d -> b%d [%s];\n", b.ID, e.Block, style)
			} else {
				w.printf("\tb%d -> b%d;\n", b.ID, e.Block)
			}
		}
	}
	w.printf("}\n")
	return w.out.Flush()
}
