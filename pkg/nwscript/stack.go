package nwscript

import (
	"github.com/golang/glog"
)

// frame tracks one subroutine while it is simulated for the first time.
type frame struct {
	sub   SubRoutineID
	base  int          // Stack depth on entry
	entry []VariableID // Stack on entry

	returned bool
	popped   int // Slots below base removed by MOVSP
	written  int // Slots below base written before the first RETN
}

// stackWalk simulates the stack effect of every reachable instruction.
type stackWalk struct {
	s *Script

	// globalsMode analyzes the global initializer on its own and stops
	// at SAVEBP.
	globalsMode bool
	stop        bool
}

func copyStack(st []VariableID) []VariableID {
	return append([]VariableID(nil), st...)
}

// at returns the i-th slot counting from the top (0 is the top).
func at(st []VariableID, i int) VariableID {
	return st[len(st)-1-i]
}

func (s *Script) analyzeStack() error {
	for i := range s.blocks {
		s.blocks[i].state = StateNone
	}
	for i := range s.subs {
		sub := &s.subs[i]
		sub.state = StateNone
		sub.analyzed = false
		sub.Params, sub.Results = nil, nil
	}
	for i := range s.instructions {
		in := &s.instructions[i]
		in.Stack, in.Reads, in.Writes, in.Pushes = nil, nil, nil, nil
	}
	s.variables, s.globals = nil, nil

	if s.global != NoSubRoutine {
		w := &stackWalk{s: s, globalsMode: true}
		if err := w.analyzeSubRoutine(s.global, nil); err != nil {
			return err
		}
		if !w.stop {
			glog.Warningf("global initializer %08X has no SAVEBP", s.subs[s.global].Address)
		}
	}

	var stack []VariableID
	if s.subs[s.main].Type == SubRoutineStartCond {
		stack = append(stack, s.newVariable(TypeInt, UseReturn, s.mainResultSlot()))
	}
	w := &stackWalk{s: s}
	if err := w.analyzeSubRoutine(s.main, stack); err != nil {
		return err
	}
	return s.checkGroupTypes()
}

// mainResultSlot returns the RSADD that reserves StartingConditional's
// return value.
func (s *Script) mainResultSlot() InstructionID {
	if s.mainCall != NoInstruction && s.mainCall > 0 {
		if prev := s.mainCall - 1; s.instructions[prev].Opcode == OpRSADD {
			return prev
		}
	}
	if e := s.subs[s.entry].Entry; s.instructions[e].Opcode == OpRSADD {
		return e
	}
	return NoInstruction
}

// analyzeSubRoutine simulates subroutine id for the first time, starting
// from the caller's stack, and derives its parameters and results.
func (w *stackWalk) analyzeSubRoutine(id SubRoutineID, stack []VariableID) error {
	s := w.s
	sub := &s.subs[id]
	sub.state = StateInProgress
	f := &frame{sub: id, base: len(stack), entry: copyStack(stack)}
	glog.V(2).Infof("analyzing %s with %d slots on the stack", sub.DisplayName(), len(stack))

	err := w.walkBlock(f, sub.Blocks[0], stack)
	sub = &s.subs[id]
	sub.state = StateFinished
	if err != nil {
		return err
	}
	sub.analyzed = true
	if sub.Type == SubRoutineStoreState {
		return nil
	}

	for i := 0; i < f.popped; i++ {
		v := at(f.entry, i)
		s.variables[v].Use = UseParameter
		sub.Params = append(sub.Params, v)
	}
	for i := f.popped; i < f.written; i++ {
		v := at(f.entry, i)
		s.variables[v].Use = UseReturn
		sub.Results = append(sub.Results, v)
	}
	glog.V(2).Infof("%s: %d params, %d results", sub.DisplayName(), len(sub.Params), len(sub.Results))
	return nil
}

func (w *stackWalk) walkBlock(f *frame, bid BlockID, stack []VariableID) error {
	s := w.s
	b := &s.blocks[bid]
	switch b.state {
	case StateFinished:
		return w.merge(b, stack)
	case StateInProgress:
		return structuralErrorf(b.Address, "block re-entered during its own simulation")
	}

	b.state = StateInProgress
	for _, id := range b.Instructions {
		s.instructions[id].Stack = copyStack(stack)
		var err error
		stack, err = w.step(f, id, stack)
		if err != nil {
			return err
		}
		if w.stop {
			break
		}
	}
	b.state = StateFinished
	if w.stop {
		return nil
	}

	for _, e := range b.Children {
		if e.Type == EdgeDead || e.Type.crossesSubRoutine() {
			continue
		}
		if err := w.walkBlock(f, e.Block, copyStack(stack)); err != nil {
			return err
		}
		if w.stop {
			return nil
		}
	}
	return nil
}

// merge reconciles the stack arriving at an already simulated block with
// the stack recorded there. Both must have the same depth; differing
// variables in the same slot become siblings.
func (w *stackWalk) merge(b *Block, stack []VariableID) error {
	s := w.s
	first := b.First()
	snap := s.instructions[first].Stack
	if len(snap) != len(stack) {
		return structuralErrorf(b.Address, "stack depth %d does not match depth %d of an earlier path", len(stack), len(snap))
	}
	for i := range stack {
		if snap[i] == stack[i] {
			continue
		}
		s.linkSiblings(snap[i], stack[i])
		if err := s.unify(snap[i], stack[i], first); err != nil {
			return err
		}
	}
	return nil
}

func underflow(in *Instruction, need, have int) error {
	return structuralErrorf(in.Address, "%s: stack underflow, need %d slots, have %d", in.Mnemonic(), need, have)
}

// slot converts a negative byte offset relative to the top of a stack into
// a slot index counting from the top.
func slot(in *Instruction, offset int32) (int, error) {
	if offset >= 0 || offset%4 != 0 {
		return 0, structuralErrorf(in.Address, "%s: bad stack offset %d", in.Mnemonic(), offset)
	}
	return int(-offset)/4 - 1, nil
}

func slots(in *Instruction, size int32) (int, error) {
	if size < 0 || size%4 != 0 {
		return 0, structuralErrorf(in.Address, "%s: bad size %d", in.Mnemonic(), size)
	}
	return int(size) / 4, nil
}

// instType maps a single-operand type byte to a Type.
func instType(t InstructionType) (Type, bool) {
	switch {
	case t == InstTypeInt:
		return TypeInt, true
	case t == InstTypeFloat:
		return TypeFloat, true
	case t == InstTypeString:
		return TypeString, true
	case t == InstTypeObject:
		return TypeObject, true
	case t == InstTypeResource:
		return TypeResource, true
	case t >= InstTypeEngineType0 && t <= InstTypeEngineType5:
		return EngineType(int(t - InstTypeEngineType0)), true
	case t == InstTypeIntArray:
		return ArrayOf(TypeInt), true
	case t == InstTypeFloatArray:
		return ArrayOf(TypeFloat), true
	case t == InstTypeStringArray:
		return ArrayOf(TypeString), true
	case t == InstTypeObjectArray:
		return ArrayOf(TypeObject), true
	case t == InstTypeResourceArray:
		return ArrayOf(TypeResource), true
	case t >= InstTypeEngineType0Array && t <= InstTypeEngineType5Array:
		return ArrayOf(EngineType(int(t - InstTypeEngineType0Array))), true
	}
	return TypeVoid, false
}

// elemType returns the element type addressed by an array instruction.
func elemType(in *Instruction) (Type, error) {
	t, ok := instType(in.Type)
	if !ok {
		return TypeVoid, structuralErrorf(in.Address, "%s: unsupported element type", in.Mnemonic())
	}
	return t.Elem(), nil
}

var vector3 = []Type{TypeFloat, TypeFloat, TypeFloat}

// binaryOperands returns the slot types of both operands of a binary
// instruction, deepest first.
func binaryOperands(in *Instruction) (lhs, rhs []Type, ok bool) {
	switch t := in.Type; {
	case t == InstTypeIntInt:
		return []Type{TypeInt}, []Type{TypeInt}, true
	case t == InstTypeFloatFloat:
		return []Type{TypeFloat}, []Type{TypeFloat}, true
	case t == InstTypeObjectObject:
		return []Type{TypeObject}, []Type{TypeObject}, true
	case t == InstTypeStringString:
		return []Type{TypeString}, []Type{TypeString}, true
	case t == InstTypeIntFloat:
		return []Type{TypeInt}, []Type{TypeFloat}, true
	case t == InstTypeFloatInt:
		return []Type{TypeFloat}, []Type{TypeInt}, true
	case t >= InstTypeEngineType0EngineType0 && t <= InstTypeEngineType5EngineType5:
		e := EngineType(int(t - InstTypeEngineType0EngineType0))
		return []Type{e}, []Type{e}, true
	case t == InstTypeVectorVector:
		return vector3, vector3, true
	case t == InstTypeVectorFloat:
		return vector3, []Type{TypeFloat}, true
	case t == InstTypeFloatVector:
		return []Type{TypeFloat}, vector3, true
	case t == InstTypeStructStruct:
		n := int(in.Args[0]) / 4
		side := make([]Type, n)
		for i := range side {
			side[i] = TypeAny
		}
		return side, side, true
	}
	return nil, nil, false
}

// arithmeticResult returns the slot types produced by ADD, SUB, MUL or DIV.
func arithmeticResult(in *Instruction) ([]Type, bool) {
	switch in.Type {
	case InstTypeIntInt:
		return []Type{TypeInt}, true
	case InstTypeIntFloat, InstTypeFloatInt, InstTypeFloatFloat:
		return []Type{TypeFloat}, true
	case InstTypeStringString:
		return []Type{TypeString}, in.Opcode == OpADD
	case InstTypeVectorVector:
		return vector3, in.Opcode == OpADD || in.Opcode == OpSUB
	case InstTypeVectorFloat:
		return vector3, in.Opcode == OpMUL || in.Opcode == OpDIV
	case InstTypeFloatVector:
		return vector3, in.Opcode == OpMUL
	}
	return nil, false
}

func (w *stackWalk) push(st []VariableID, t Type, use VariableUse, by InstructionID) []VariableID {
	return append(st, w.s.newVariable(t, use, by))
}

// pop removes the top slot after checking it against t.
func (w *stackWalk) pop(st []VariableID, t Type, id InstructionID) ([]VariableID, VariableID, error) {
	in := &w.s.instructions[id]
	if len(st) == 0 {
		return nil, NoVariable, underflow(in, 1, 0)
	}
	v := st[len(st)-1]
	if err := w.s.requireType(v, t, id); err != nil {
		return nil, NoVariable, err
	}
	w.s.markRead(v, id)
	return st[:len(st)-1], v, nil
}

func (w *stackWalk) step(f *frame, id InstructionID, st []VariableID) ([]VariableID, error) {
	s := w.s
	in := &s.instructions[id]

	switch in.Opcode {
	case OpNOP, OpJMP, OpSTORESTATEALL, OpSCRIPTSIZE:
		return st, nil

	case OpRETN:
		f.returned = true
		return st, nil

	case OpRSADD:
		t, ok := instType(in.Type)
		if !ok {
			return nil, structuralErrorf(in.Address, "%s: cannot reserve this type", in.Mnemonic())
		}
		return w.push(st, t, UseLocal, id), nil

	case OpCONST:
		return w.push(st, in.Constant.Type, UseLocal, id), nil

	case OpCPDOWNSP:
		return st, w.copyDown(f, id, st)

	case OpCPTOPSP:
		return w.copyTop(id, st, st)

	case OpCPDOWNBP:
		if err := w.requireGlobals(in); err != nil {
			return nil, err
		}
		return st, w.copyDownBP(id, st)

	case OpCPTOPBP:
		if err := w.requireGlobals(in); err != nil {
			return nil, err
		}
		return w.copyTop(id, st, s.globals)

	case OpMOVSP:
		return w.moveSP(f, id, st)

	case OpDESTRUCT:
		return w.destruct(id, st)

	case OpINCSP, OpDECSP:
		return st, w.increment(id, st)

	case OpINCBP, OpDECBP:
		if err := w.requireGlobals(in); err != nil {
			return nil, err
		}
		return st, w.increment(id, s.globals)

	case OpSAVEBP:
		if w.globalsMode {
			s.globals = copyStack(st)
			for _, v := range st {
				s.variables[v].Use = UseGlobal
			}
			glog.V(2).Infof("SAVEBP at %08X: %d globals", in.Address, len(st))
			w.stop = true
		}
		return w.push(st, TypeInt, UseUnknown, id), nil

	case OpRESTOREBP:
		st, _, err := w.pop(st, TypeInt, id)
		return st, err

	case OpJZ, OpJNZ:
		st, _, err := w.pop(st, TypeInt, id)
		return st, err

	case OpNEG:
		t := TypeInt
		if in.Type == InstTypeFloat {
			t = TypeFloat
		}
		st, _, err := w.pop(st, t, id)
		if err != nil {
			return nil, err
		}
		return w.push(st, t, UseLocal, id), nil

	case OpCOMP, OpNOT:
		st, _, err := w.pop(st, TypeInt, id)
		if err != nil {
			return nil, err
		}
		return w.push(st, TypeInt, UseLocal, id), nil

	case OpLOGAND, OpLOGOR, OpINCOR, OpEXCOR, OpBOOLAND,
		OpEQ, OpNEQ, OpGEQ, OpGT, OpLT, OpLEQ,
		OpSHLEFT, OpSHRIGHT, OpUSHRIGHT, OpMOD,
		OpADD, OpSUB, OpMUL, OpDIV:
		return w.binary(id, st)

	case OpACTION:
		return w.action(id, st)

	case OpJSR:
		return w.call(f, id, st)

	case OpSTORESTATE:
		return st, w.storeState(id, st)

	case OpREADARRAY, OpWRITEARRAY, OpGETREF, OpGETREFARRAY:
		return w.array(id, st)
	}
	return nil, structuralErrorf(in.Address, "%s: no stack semantics", in.Mnemonic())
}

func (w *stackWalk) requireGlobals(in *Instruction) error {
	if w.s.globals == nil {
		return structuralErrorf(in.Address, "%s: no global variables have been saved", in.Mnemonic())
	}
	return nil
}

// copyDown overwrites slots deeper in the stack with the top slots.
// Writes below the frame before the first RETN reveal return slots.
func (w *stackWalk) copyDown(f *frame, id InstructionID, st []VariableID) error {
	s := w.s
	in := &s.instructions[id]
	top, err := slot(in, in.Args[0])
	if err != nil {
		return err
	}
	n, err := slots(in, int32(in.Args[1]))
	if err != nil {
		return err
	}
	if top >= len(st) || n > len(st) || n > top+1 {
		return underflow(in, max(top+1, n), len(st))
	}

	own := len(st) - f.base
	for j := 0; j < n; j++ {
		src := at(st, n-1-j)
		di := top - j
		dst := at(st, di)
		if di >= own && !f.returned && di-own+1 > f.written {
			f.written = di - own + 1
		}
		if err := s.unify(dst, src, id); err != nil {
			return err
		}
		s.markRead(src, id)
		s.markWritten(dst, id)
	}
	return nil
}

// copyDownBP overwrites global slots with the top slots of the stack.
func (w *stackWalk) copyDownBP(id InstructionID, st []VariableID) error {
	s := w.s
	in := &s.instructions[id]
	top, err := slot(in, in.Args[0])
	if err != nil {
		return err
	}
	n, err := slots(in, int32(in.Args[1]))
	if err != nil {
		return err
	}
	if n > len(st) {
		return underflow(in, n, len(st))
	}
	if top >= len(s.globals) || n > top+1 {
		return underflow(in, max(top+1, n), len(s.globals))
	}
	for j := 0; j < n; j++ {
		src := at(st, n-1-j)
		dst := at(s.globals, top-j)
		if err := s.unify(dst, src, id); err != nil {
			return err
		}
		s.markRead(src, id)
		s.markWritten(dst, id)
	}
	return nil
}

// copyTop pushes duplicates of slots read from src, which is either the
// stack itself or the globals.
func (w *stackWalk) copyTop(id InstructionID, st, src []VariableID) ([]VariableID, error) {
	s := w.s
	in := &s.instructions[id]
	top, err := slot(in, in.Args[0])
	if err != nil {
		return nil, err
	}
	n, err := slots(in, int32(in.Args[1]))
	if err != nil {
		return nil, err
	}
	if top >= len(src) || n > top+1 {
		return nil, underflow(in, top+1, len(src))
	}

	orig := make([]VariableID, n)
	for j := range orig {
		orig[j] = at(src, top-j)
	}
	for _, o := range orig {
		v := s.newVariable(s.variables[o].Type, UseLocal, id)
		s.linkDuplicates(o, v)
		s.markRead(o, id)
		st = append(st, v)
	}
	return st, nil
}

// moveSP pops slots. Pops reaching below the frame reveal parameters.
func (w *stackWalk) moveSP(f *frame, id InstructionID, st []VariableID) ([]VariableID, error) {
	in := &w.s.instructions[id]
	if in.Args[0] > 0 || in.Args[0]%4 != 0 {
		return nil, structuralErrorf(in.Address, "%s: bad stack offset %d", in.Mnemonic(), in.Args[0])
	}
	n := int(-in.Args[0]) / 4
	if n > len(st) {
		return nil, underflow(in, n, len(st))
	}
	own := len(st) - f.base
	if n > own && n-own > f.popped {
		f.popped = n - own
	}
	return st[:len(st)-n], nil
}

// destruct drops the top size bytes except for one kept range.
func (w *stackWalk) destruct(id InstructionID, st []VariableID) ([]VariableID, error) {
	in := &w.s.instructions[id]
	n, err := slots(in, in.Args[0])
	if err != nil {
		return nil, err
	}
	ko, err := slots(in, in.Args[1])
	if err != nil {
		return nil, err
	}
	ks, err := slots(in, in.Args[2])
	if err != nil {
		return nil, err
	}
	if n > len(st) {
		return nil, underflow(in, n, len(st))
	}
	if ko+ks > n {
		return nil, structuralErrorf(in.Address, "%s: kept range %d+%d outside %d bytes", in.Mnemonic(), in.Args[1], in.Args[2], in.Args[0])
	}
	region := st[len(st)-n:]
	kept := copyStack(region[ko : ko+ks])
	return append(st[:len(st)-n], kept...), nil
}

// increment handles INCSP/DECSP and their BP counterparts.
func (w *stackWalk) increment(id InstructionID, st []VariableID) error {
	s := w.s
	in := &s.instructions[id]
	i, err := slot(in, in.Args[0])
	if err != nil {
		return err
	}
	if i >= len(st) {
		return underflow(in, i+1, len(st))
	}
	v := at(st, i)
	if err := s.requireType(v, TypeInt, id); err != nil {
		return err
	}
	s.markRead(v, id)
	s.markWritten(v, id)
	return nil
}

func (w *stackWalk) binary(id InstructionID, st []VariableID) ([]VariableID, error) {
	s := w.s
	in := &s.instructions[id]
	lhs, rhs, ok := binaryOperands(in)
	if !ok {
		return nil, structuralErrorf(in.Address, "%s: unsupported operand types", in.Mnemonic())
	}

	var result []Type
	switch in.Opcode {
	case OpADD, OpSUB, OpMUL, OpDIV:
		if result, ok = arithmeticResult(in); !ok {
			return nil, structuralErrorf(in.Address, "%s: unsupported operand types", in.Mnemonic())
		}
	default:
		result = []Type{TypeInt}
	}

	total := len(lhs) + len(rhs)
	if total > len(st) {
		return nil, underflow(in, total, len(st))
	}
	operands := st[len(st)-total:]
	want := append(append([]Type(nil), lhs...), rhs...)
	for i, v := range operands {
		if err := s.requireType(v, want[i], id); err != nil {
			return nil, err
		}
		s.markRead(v, id)
	}
	if in.Type == InstTypeStructStruct {
		for i := range lhs {
			if err := s.unify(operands[i], operands[len(lhs)+i], id); err != nil {
				return nil, err
			}
		}
	}

	st = st[:len(st)-total]
	for _, t := range result {
		st = w.push(st, t, UseLocal, id)
	}
	return st, nil
}

// action calls an engine function. Parameter 0 is on top of the stack.
func (w *stackWalk) action(id InstructionID, st []VariableID) ([]VariableID, error) {
	s := w.s
	in := &s.instructions[id]
	if s.table == nil {
		return nil, structuralErrorf(in.Address, "%s: no function table", in.Mnemonic())
	}
	index, argc := int(in.Args[0]), int(in.Args[1])
	fn, ok := s.table.Function(index)
	if !ok {
		return nil, structuralErrorf(in.Address, "%s: unknown engine function %d", in.Mnemonic(), index)
	}
	if argc > len(fn.Params) {
		return nil, structuralErrorf(in.Address, "%s: %s takes %d parameters, called with %d", in.Mnemonic(), fn.Name, len(fn.Params), argc)
	}

	var err error
	for i := 0; i < argc; i++ {
		p := fn.Params[i]
		switch slotSize(p) {
		case 0:
		case 3:
			for k := 0; k < 3; k++ {
				if st, _, err = w.pop(st, TypeFloat, id); err != nil {
					return nil, err
				}
			}
		default:
			if st, _, err = w.pop(st, p, id); err != nil {
				return nil, err
			}
		}
	}

	switch slotSize(fn.Return) {
	case 0:
	case 3:
		for k := 0; k < 3; k++ {
			st = w.push(st, TypeFloat, UseLocal, id)
		}
	default:
		st = w.push(st, fn.Return, UseLocal, id)
	}
	return st, nil
}

// call handles JSR. The callee is simulated on its first call only; later
// calls are resolved against its recorded parameters and results.
func (w *stackWalk) call(f *frame, id InstructionID, st []VariableID) ([]VariableID, error) {
	s := w.s
	in := &s.instructions[id]
	callee := s.blocks[s.instructions[in.Branches[0]].Block].SubRoutine

	switch s.subs[callee].state {
	case StateInProgress:
		// Deferred code may end by jumping back into the subroutine that
		// captured it.
		if s.subs[f.sub].Type == SubRoutineStoreState && in.Follower != NoInstruction &&
			s.instructions[in.Follower].Opcode == OpRETN {
			glog.V(2).Infof("%08X: ignoring tail call back into %s", in.Address, s.subs[callee].DisplayName())
			return st, nil
		}
		return nil, structuralErrorf(in.Address, "recursive call to %s", s.subs[callee].DisplayName())

	case StateNone:
		if err := w.analyzeSubRoutine(callee, copyStack(st)); err != nil {
			return nil, err
		}
		if w.stop {
			return st, nil
		}
	}

	c := &s.subs[callee]
	np, nr := len(c.Params), len(c.Results)
	if np+nr > len(st) {
		return nil, underflow(in, np+nr, len(st))
	}
	for i := 0; i < np; i++ {
		v := at(st, i)
		if err := s.unify(v, c.Params[i], id); err != nil {
			return nil, err
		}
		s.variables[v].Use = UseParameter
		s.markRead(v, id)
	}
	for i := 0; i < nr; i++ {
		v := at(st, np+i)
		if err := s.unify(v, c.Results[i], id); err != nil {
			return nil, err
		}
		s.variables[v].Use = UseReturn
		s.markWritten(v, id)
	}
	return st[:len(st)-np], nil
}

// storeState simulates the deferred code captured by STORESTATE against a
// copy of the current stack. The caller's stack is unchanged.
func (w *stackWalk) storeState(id InstructionID, st []VariableID) error {
	s := w.s
	in := &s.instructions[id]
	target := s.blocks[s.instructions[in.Branches[0]].Block].SubRoutine
	switch s.subs[target].state {
	case StateInProgress:
		return structuralErrorf(in.Address, "deferred code %s captured while it runs", s.subs[target].DisplayName())
	case StateNone:
		return w.analyzeSubRoutine(target, copyStack(st))
	}
	return nil
}

// array handles READARRAY, WRITEARRAY, GETREF and GETREFARRAY. The index,
// when there is one, is on top of the stack; the offset addresses the array
// after the index is popped.
func (w *stackWalk) array(id InstructionID, st []VariableID) ([]VariableID, error) {
	s := w.s
	in := &s.instructions[id]
	var err error

	if in.Opcode == OpGETREF {
		i, err := slot(in, in.Args[0])
		if err != nil {
			return nil, err
		}
		if i >= len(st) {
			return nil, underflow(in, i+1, len(st))
		}
		v := at(st, i)
		s.markRead(v, id)
		return w.push(st, ReferenceTo(s.variables[v].Type), UseLocal, id), nil
	}

	elem, err := elemType(in)
	if err != nil {
		return nil, err
	}
	if st, _, err = w.pop(st, TypeInt, id); err != nil {
		return nil, err
	}
	i, err := slot(in, in.Args[0])
	if err != nil {
		return nil, err
	}
	if i >= len(st) {
		return nil, underflow(in, i+1, len(st))
	}
	arr := at(st, i)
	if err := s.requireType(arr, ArrayOf(elem), id); err != nil {
		return nil, err
	}

	switch in.Opcode {
	case OpREADARRAY:
		s.markRead(arr, id)
		return w.push(st, elem, UseLocal, id), nil
	case OpWRITEARRAY:
		if len(st) == 0 {
			return nil, underflow(in, 1, 0)
		}
		val := at(st, 0)
		if err := s.requireType(val, elem, id); err != nil {
			return nil, err
		}
		s.markRead(val, id)
		s.markWritten(arr, id)
		return st, nil
	default:
		s.markRead(arr, id)
		return w.push(st, ReferenceTo(elem), UseLocal, id), nil
	}
}
