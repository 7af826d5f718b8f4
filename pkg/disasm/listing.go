package disasm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/yoremi/nwscript-go/pkg/encoding"
	"github.com/yoremi/nwscript-go/pkg/nwscript"
)

const (
	codeColumn  = 40
	bytesColumn = 30
)

// Writer renders a script to an output stream.
type Writer struct {
	opts Options
	out  *bufio.Writer
}

// NewWriter creates a writer on out.
func NewWriter(out io.Writer, opts Options) *Writer {
	if opts.Indent == "" {
		opts.Indent = "\t"
	}
	return &Writer{opts: opts, out: bufio.NewWriter(out)}
}

func (w *Writer) printf(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format, args...)
}

func (w *Writer) header(s *nwscript.Script, comment, verb string) {
	version := w.opts.Version
	if version == "" {
		version = "dev"
	}
	w.printf("%s %s with nwscript-go %s\n", comment, verb, version)
	w.printf("%s %d bytes, %d instructions, %d subroutines\n\n",
		comment, s.Size(), len(s.Instructions()), len(s.SubRoutines()))
}

// labels names every address the listing refers to: subroutine entries by
// their subroutine name, other jump targets as loc_XXXXXXXX.
func labels(s *nwscript.Script) map[uint32]string {
	out := map[uint32]string{}
	for _, in := range s.Instructions() {
		if in.AddressType >= nwscript.AddressJumpLabel {
			out[in.Address] = fmt.Sprintf("loc_%08X", in.Address)
		}
	}
	for _, sub := range s.SubRoutines() {
		out[sub.Address] = sub.DisplayName()
	}
	return out
}

func mnemonic(in *nwscript.Instruction) string {
	if in.Opcode == nwscript.OpSTORESTATE {
		return in.Opcode.String()
	}
	return in.Mnemonic()
}

// operands formats the arguments with jump targets replaced by labels and
// string literals converted to UTF-8.
func (w *Writer) operands(s *nwscript.Script, in *nwscript.Instruction, names map[uint32]string) string {
	switch in.Opcode {
	case nwscript.OpJMP, nwscript.OpJSR, nwscript.OpJZ, nwscript.OpJNZ:
		return names[in.JumpTarget()]
	case nwscript.OpSTORESTATE:
		return fmt.Sprintf("%s %d %d", names[in.StoreStateTarget()], in.Args[0], in.Args[1])
	case nwscript.OpCONST:
		if in.Constant.Type == nwscript.TypeString || in.Constant.Type == nwscript.TypeResource {
			return strconv.Quote(encoding.Converter(w.opts.Encoding)(in.Constant.Str))
		}
	}
	return in.ArgString()
}

func (w *Writer) comment(s *nwscript.Script, in *nwscript.Instruction, n *namer) string {
	var parts []string
	if in.Opcode == nwscript.OpACTION {
		if table := s.FunctionTable(); table != nil {
			if f, ok := table.Function(int(in.Args[0])); ok {
				parts = append(parts, f.Name)
			}
		}
	}
	if w.opts.Stack && s.HasStackAnalysis() {
		vars := make([]string, len(in.Stack))
		for i, v := range in.Stack {
			vars[i] = n.name(v)
		}
		parts = append(parts, "["+strings.Join(vars, " ")+"]")
	}
	return strings.Join(parts, " ")
}

// WriteListing writes an assembly listing, one subroutine after another.
// data is the raw file; it is only needed for the bytes column.
func (w *Writer) WriteListing(s *nwscript.Script, data []byte) error {
	w.header(s, ";", "Disassembled")
	names := labels(s)
	n := newNamer(s)

	for i := range s.SubRoutines() {
		sub := &s.SubRoutines()[i]
		w.printf("; %s (%s)", sub.DisplayName(), sub.Type)
		if s.HasStackAnalysis() {
			w.printf(", %d parameters, %d results", len(sub.Params), len(sub.Results))
		}
		w.printf("\n")

		for _, bid := range sub.Blocks {
			if s.Block(bid).Unreachable {
				w.printf("%s; unreachable\n", w.opts.Indent)
			}
			for _, id := range s.Block(bid).Instructions {
				in := s.Instruction(id)
				if label, ok := names[in.Address]; ok {
					w.printf("%s:\n", label)
				}
				w.line(s, in, data, names, n)
			}
		}
		w.printf("\n")
	}
	return w.out.Flush()
}

func (w *Writer) line(s *nwscript.Script, in *nwscript.Instruction, data []byte, names map[uint32]string, n *namer) {
	var sb strings.Builder
	if w.opts.Annotate {
		fmt.Fprintf(&sb, "%08X  ", in.Address)
	}
	if w.opts.ShowBytes && data != nil && int(in.Address)+in.Size <= len(data) {
		raw := data[in.Address : int(in.Address)+in.Size]
		sb.WriteString(runewidth.FillRight(fmt.Sprintf("% X", raw), bytesColumn))
		sb.WriteString(" ")
	}
	code := w.opts.Indent + mnemonic(in)
	if ops := w.operands(s, in, names); ops != "" {
		code += " " + ops
	}
	if c := w.comment(s, in, n); c != "" {
		code = runewidth.FillRight(code, codeColumn) + " ; " + c
	}
	sb.WriteString(code)
	w.printf("%s\n", strings.TrimRight(sb.String(), " "))
}
