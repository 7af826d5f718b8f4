package disasm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/yoremi/nwscript-go/pkg/encoding"
	"github.com/yoremi/nwscript-go/pkg/nwscript"
)

var operators = map[nwscript.Opcode]string{
	nwscript.OpADD:      "+",
	nwscript.OpSUB:      "-",
	nwscript.OpMUL:      "*",
	nwscript.OpDIV:      "/",
	nwscript.OpMOD:      "%",
	nwscript.OpLOGAND:   "&&",
	nwscript.OpLOGOR:    "||",
	nwscript.OpINCOR:    "|",
	nwscript.OpEXCOR:    "^",
	nwscript.OpBOOLAND:  "&",
	nwscript.OpEQ:       "==",
	nwscript.OpNEQ:      "!=",
	nwscript.OpGEQ:      ">=",
	nwscript.OpGT:       ">",
	nwscript.OpLT:       "<",
	nwscript.OpLEQ:      "<=",
	nwscript.OpSHLEFT:   "<<",
	nwscript.OpSHRIGHT:  ">>",
	nwscript.OpUSHRIGHT: ">>>",
}

var unaryOperators = map[nwscript.Opcode]string{
	nwscript.OpNEG:  "-",
	nwscript.OpNOT:  "!",
	nwscript.OpCOMP: "~",
}

// decompiler turns one analyzed script into pseudo-source.
type decompiler struct {
	w    *Writer
	s    *nwscript.Script
	n    *namer
	conv func(string) string

	// Per function
	sub      *nwscript.SubRoutine
	declared map[string]bool
	done     map[nwscript.BlockID]bool
	opened   map[nwscript.BlockID]bool
	loopCond map[nwscript.BlockID]string
	retval   string
	deferred string
}

// WriteSource writes NSS-like pseudo-source for every analyzed subroutine.
// Both stack and control-flow analysis must have run.
func (w *Writer) WriteSource(s *nwscript.Script) error {
	if !s.HasStackAnalysis() || !s.HasControlFlowAnalysis() {
		return errors.New("pseudo-source needs stack and control-flow analysis")
	}
	d := &decompiler{w: w, s: s, n: newNamer(s), conv: encoding.Converter(w.opts.Encoding)}
	w.header(s, "//", "Decompiled")

	if globals := s.Globals(); len(globals) > 0 {
		for _, g := range globals {
			w.printf("%s %s;\n", d.n.typeName(s.Variable(g).Type), d.n.name(g))
		}
		w.printf("\n")
	}

	for i := range s.SubRoutines() {
		sub := &s.SubRoutines()[i]
		switch {
		case sub.Type == nwscript.SubRoutineStart, sub.Type == nwscript.SubRoutineGlobal:
			continue
		case !sub.Analyzed():
			w.printf("// %s is never called\n\n", sub.DisplayName())
			continue
		}
		d.function(sub)
	}
	return w.out.Flush()
}

func (d *decompiler) line(depth int, format string, args ...interface{}) {
	d.w.printf("%s%s\n", strings.Repeat(d.w.opts.Indent, depth), fmt.Sprintf(format, args...))
}

func (d *decompiler) function(sub *nwscript.SubRoutine) {
	d.sub = sub
	d.declared = map[string]bool{}
	d.done = map[nwscript.BlockID]bool{}
	d.opened = map[nwscript.BlockID]bool{}
	d.loopCond = map[nwscript.BlockID]string{}
	d.retval, d.deferred = "", ""

	ret := "void"
	if len(sub.Results) > 0 {
		ret = d.n.typeName(d.s.Variable(sub.Results[0]).Type)
	}
	params := make([]string, len(sub.Params))
	for i, p := range sub.Params {
		name := d.n.name(p)
		d.declared[name] = true
		params[i] = d.n.typeName(d.s.Variable(p).Type) + " " + name
	}
	d.w.printf("%s %s(%s)\n{\n", ret, sub.DisplayName(), strings.Join(params, ", "))
	d.seq(sub.Blocks[0], nwscript.NoBlock, 1)
	d.w.printf("}\n\n")
}

// seq emits blocks starting at id until it reaches stop, a block already
// emitted, or a block that leaves the current statement.
func (d *decompiler) seq(id, stop nwscript.BlockID, depth int) {
	for id != nwscript.NoBlock && id != stop {
		b := d.s.Block(id)
		if c, ok := b.Control(nwscript.ControlDoWhileHead); ok && !d.opened[id] {
			d.opened[id] = true
			d.line(depth, "do")
			d.line(depth, "{")
			d.seq(id, c.LoopNext, depth+1)
			d.line(depth, "}")
			cond, ok := d.loopCond[id]
			if !ok {
				cond = "TRUE"
			}
			d.line(depth, "while (%s);", cond)
			id = c.LoopNext
			continue
		}
		if d.done[id] {
			return
		}
		d.done[id] = true

		switch {
		case b.Is(nwscript.ControlBreak):
			d.line(depth, "break;")
			return
		case b.Is(nwscript.ControlContinue):
			d.line(depth, "continue;")
			return
		}
		if c, ok := b.Control(nwscript.ControlReturn); ok && c.Return != id {
			d.line(depth, "%s", d.returnStatement())
			return
		}

		d.statements(b, depth)

		if c, ok := b.Control(nwscript.ControlWhileHead); ok {
			ic, _ := b.Control(nwscript.ControlIfCond)
			d.line(depth, "while (%s)", d.condition(b, ic.IfTrue))
			d.line(depth, "{")
			d.seq(ic.IfTrue, c.LoopNext, depth+1)
			d.line(depth, "}")
			id = c.LoopNext
			continue
		}

		if ic, ok := b.Control(nwscript.ControlIfCond); ok {
			if tc, ok := d.s.Block(ic.IfTrue).Control(nwscript.ControlDoWhileTail); ok &&
				ic.IfElse == nwscript.NoBlock && tc.LoopNext == ic.IfNext {
				d.loopCond[tc.LoopHead] = d.condition(b, ic.IfTrue)
				id = ic.IfTrue
				continue
			}
			d.line(depth, "if (%s)", d.condition(b, ic.IfTrue))
			d.line(depth, "{")
			d.seq(ic.IfTrue, ic.IfNext, depth+1)
			d.line(depth, "}")
			if ic.IfElse != nwscript.NoBlock {
				d.line(depth, "else")
				d.line(depth, "{")
				d.seq(ic.IfElse, ic.IfNext, depth+1)
				d.line(depth, "}")
			}
			id = ic.IfNext
			continue
		}

		id = d.follow(b)
	}
}

// follow returns the only live successor inside the subroutine.
func (d *decompiler) follow(b *nwscript.Block) nwscript.BlockID {
	next := nwscript.NoBlock
	for _, e := range b.Children {
		switch e.Type {
		case nwscript.EdgeDead, nwscript.EdgeSubRoutineCall, nwscript.EdgeSubRoutineStore:
			continue
		}
		if next != nwscript.NoBlock {
			return nwscript.NoBlock
		}
		next = e.Block
	}
	return next
}

// condition renders the test of the conditional jump ending b, so that it
// holds exactly when control goes to arm.
func (d *decompiler) condition(b *nwscript.Block, arm nwscript.BlockID) string {
	in := d.s.Instruction(b.Last())
	cond := d.n.name(first(in.Reads))
	for _, e := range b.Children {
		if e.Block == arm && e.Type == nwscript.EdgeConditionalFalse {
			return "!" + cond
		}
	}
	return cond
}

func (d *decompiler) returnStatement() string {
	if d.retval != "" {
		return "return " + d.retval + ";"
	}
	return "return;"
}

func (d *decompiler) statements(b *nwscript.Block, depth int) {
	for _, id := range b.Instructions {
		for _, st := range d.statement(d.s.Instruction(id)) {
			d.line(depth, "%s", st)
		}
	}
}

// decl names v, with its type the first time it appears in a function.
func (d *decompiler) decl(v nwscript.VariableID) string {
	name := d.n.name(v)
	if d.declared[name] {
		return name
	}
	d.declared[name] = true
	return d.n.typeName(d.s.Variable(v).Type) + " " + name
}

func first(vs []nwscript.VariableID) nwscript.VariableID {
	if len(vs) == 0 {
		return nwscript.NoVariable
	}
	return vs[0]
}

func (d *decompiler) names(vs []nwscript.VariableID) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = d.n.name(v)
	}
	return out
}

func (d *decompiler) isResult(v nwscript.VariableID) bool {
	for _, r := range d.sub.Results {
		if r == v {
			return true
		}
	}
	return false
}

func (d *decompiler) literal(c nwscript.Constant) string {
	switch c.Type {
	case nwscript.TypeString, nwscript.TypeResource:
		return strconv.Quote(d.conv(c.Str))
	case nwscript.TypeFloat:
		f := float64(c.Float)
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatFloat(f, 'f', 1, 32)
		}
	case nwscript.TypeObject:
		switch c.Object {
		case 0:
			return "OBJECT_SELF"
		case 0x7F000000:
			return "OBJECT_INVALID"
		}
	}
	return c.String()
}

// statement renders one instruction as zero or more source statements.
func (d *decompiler) statement(in *nwscript.Instruction) []string {
	switch in.Opcode {
	case nwscript.OpRSADD:
		if len(in.Pushes) == 0 || d.declared[d.n.name(in.Pushes[0])] {
			return nil
		}
		return []string{d.decl(in.Pushes[0]) + ";"}

	case nwscript.OpCONST:
		if len(in.Pushes) == 0 {
			return nil
		}
		return []string{d.decl(in.Pushes[0]) + " = " + d.literal(in.Constant) + ";"}

	case nwscript.OpCPTOPSP, nwscript.OpCPTOPBP:
		var out []string
		for k, v := range in.Pushes {
			if k < len(in.Reads) {
				out = append(out, d.decl(v)+" = "+d.n.name(in.Reads[k])+";")
			}
		}
		return out

	case nwscript.OpCPDOWNSP, nwscript.OpCPDOWNBP:
		var out []string
		for k, v := range in.Writes {
			if k >= len(in.Reads) {
				break
			}
			src := d.n.name(in.Reads[k])
			if d.isResult(v) {
				d.retval = src
				continue
			}
			out = append(out, d.n.name(v)+" = "+src+";")
		}
		return out

	case nwscript.OpINCSP, nwscript.OpINCBP:
		return []string{d.n.name(first(in.Reads)) + "++;"}
	case nwscript.OpDECSP, nwscript.OpDECBP:
		return []string{d.n.name(first(in.Reads)) + "--;"}

	case nwscript.OpNEG, nwscript.OpNOT, nwscript.OpCOMP:
		if len(in.Pushes) == 0 {
			return nil
		}
		return []string{d.decl(in.Pushes[0]) + " = " + unaryOperators[in.Opcode] + d.n.name(first(in.Reads)) + ";"}

	case nwscript.OpACTION:
		return d.action(in)

	case nwscript.OpJSR:
		return d.call(in)

	case nwscript.OpSTORESTATE:
		if sub, ok := d.s.SubRoutineByAddress(in.StoreStateTarget()); ok {
			d.deferred = sub.DisplayName() + "()"
		}
		return nil

	case nwscript.OpRETN:
		return []string{d.returnStatement()}

	case nwscript.OpREADARRAY, nwscript.OpWRITEARRAY, nwscript.OpGETREF, nwscript.OpGETREFARRAY:
		return []string{fmt.Sprintf("/* %s %s */", in.Mnemonic(), in.ArgString())}
	}

	if op, ok := operators[in.Opcode]; ok && len(in.Pushes) > 0 {
		lhs, rhs := d.operands(in)
		return []string{d.decl(in.Pushes[0]) + " = " + lhs + " " + op + " " + rhs + ";"}
	}
	return nil
}

// operands splits the reads of a binary operation into its two sides.
func (d *decompiler) operands(in *nwscript.Instruction) (string, string) {
	reads := d.names(in.Reads)
	split := len(reads) / 2
	switch in.Type {
	case nwscript.InstTypeVectorFloat:
		split = 3
	case nwscript.InstTypeFloatVector:
		split = 1
	}
	if split > len(reads) {
		split = len(reads)
	}
	group := func(names []string) string {
		if len(names) == 1 {
			return names[0]
		}
		return "[" + strings.Join(names, ", ") + "]"
	}
	return group(reads[:split]), group(reads[split:])
}

func (d *decompiler) action(in *nwscript.Instruction) []string {
	index, argc := int(in.Args[0]), int(in.Args[1])
	name := fmt.Sprintf("Action%d", index)
	var params []nwscript.Type
	if table := d.s.FunctionTable(); table != nil {
		if f, ok := table.Function(index); ok {
			name, params = f.Name, f.Params
		}
	}

	var args []string
	k := 0
	for i := 0; i < argc && i < len(params); i++ {
		switch {
		case params[i] == nwscript.TypeScriptState:
			args = append(args, d.deferred)
		case params[i] == nwscript.TypeVector && k+3 <= len(in.Reads):
			args = append(args, "["+strings.Join(d.names(in.Reads[k:k+3]), ", ")+"]")
			k += 3
		case k < len(in.Reads):
			args = append(args, d.n.name(in.Reads[k]))
			k++
		}
	}
	call := name + "(" + strings.Join(args, ", ") + ")"
	if len(in.Pushes) == 0 {
		return []string{call + ";"}
	}
	return []string{d.decl(in.Pushes[0]) + " = " + call + ";"}
}

func (d *decompiler) call(in *nwscript.Instruction) []string {
	callee, ok := d.s.SubRoutineByAddress(in.JumpTarget())
	if !ok {
		return nil
	}
	call := callee.DisplayName() + "(" + strings.Join(d.names(in.Reads), ", ") + ")"
	if len(in.Writes) == 0 {
		return []string{call + ";"}
	}
	return []string{d.n.name(in.Writes[0]) + " = " + call + ";"}
}
