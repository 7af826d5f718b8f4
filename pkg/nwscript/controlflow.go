package nwscript

import (
	"sort"

	"github.com/golang/glog"
)

// ControlType is the role a block plays in a control structure.
type ControlType uint8

const (
	ControlNone ControlType = iota
	ControlDoWhileHead
	ControlDoWhileTail
	ControlDoWhileNext
	ControlWhileHead
	ControlWhileTail
	ControlWhileNext
	ControlBreak
	ControlContinue
	ControlReturn
	ControlIfCond
	ControlIfTrue
	ControlIfElse
	ControlIfNext
)

func (c ControlType) String() string {
	switch c {
	case ControlDoWhileHead:
		return "do-while head"
	case ControlDoWhileTail:
		return "do-while tail"
	case ControlDoWhileNext:
		return "do-while next"
	case ControlWhileHead:
		return "while head"
	case ControlWhileTail:
		return "while tail"
	case ControlWhileNext:
		return "while next"
	case ControlBreak:
		return "break"
	case ControlContinue:
		return "continue"
	case ControlReturn:
		return "return"
	case ControlIfCond:
		return "if cond"
	case ControlIfTrue:
		return "if true"
	case ControlIfElse:
		return "if else"
	case ControlIfNext:
		return "if next"
	default:
		return "none"
	}
}

// ControlStructure is one tag on a block. Loop tags (and break/continue)
// carry the loop's head, tail and next blocks; if tags carry the condition,
// both arms and the merge block; return tags carry the returning block.
// Unused fields are NoBlock.
type ControlStructure struct {
	Type ControlType

	LoopHead, LoopTail, LoopNext BlockID

	IfCond, IfTrue, IfElse, IfNext BlockID

	Return BlockID
}

func newControl(t ControlType) ControlStructure {
	return ControlStructure{
		Type:     t,
		LoopHead: NoBlock, LoopTail: NoBlock, LoopNext: NoBlock,
		IfCond: NoBlock, IfTrue: NoBlock, IfElse: NoBlock, IfNext: NoBlock,
		Return: NoBlock,
	}
}

func loopControl(t ControlType, head, tail, next BlockID) ControlStructure {
	c := newControl(t)
	c.LoopHead, c.LoopTail, c.LoopNext = head, tail, next
	return c
}

func ifControl(t ControlType, cond, yes, no, next BlockID) ControlStructure {
	c := newControl(t)
	c.IfCond, c.IfTrue, c.IfElse, c.IfNext = cond, yes, no, next
	return c
}

// Control returns the first tag of type t on the block.
func (b *Block) Control(t ControlType) (ControlStructure, bool) {
	for _, c := range b.Controls {
		if c.Type == t {
			return c, true
		}
	}
	return ControlStructure{}, false
}

// Is reports whether the block carries a tag of type t.
func (b *Block) Is(t ControlType) bool {
	_, ok := b.Control(t)
	return ok
}

// IsLoopHead reports whether the block starts a while or do-while loop.
func (b *Block) IsLoopHead() bool {
	return b.Is(ControlWhileHead) || b.Is(ControlDoWhileHead)
}

// loop is a recognized loop, in block ids.
type loop struct {
	head, tail, next BlockID
	doWhile          bool
}

type controlFlow struct {
	s     *Script
	order []BlockID // Reachable blocks in address order
	loops []loop
}

func (s *Script) analyzeControlFlow() error {
	for i := range s.blocks {
		s.blocks[i].Controls = nil
		s.blocks[i].state = StateNone
	}
	cf := &controlFlow{s: s}
	for _, id := range s.blockOrder {
		if !s.blocks[id].Unreachable {
			cf.order = append(cf.order, id)
		}
	}
	cf.detectDoWhile()
	cf.detectWhile()
	cf.detectBreak()
	cf.detectContinue()
	cf.detectReturn()
	cf.detectIf()
	if err := cf.verify(); err != nil {
		return err
	}
	glog.V(1).Infof("control flow: %d loops", len(cf.loops))
	return nil
}

func (cf *controlFlow) block(id BlockID) *Block { return &cf.s.blocks[id] }

func (cf *controlFlow) tag(id BlockID, c ControlStructure) {
	b := cf.block(id)
	b.Controls = append(b.Controls, c)
}

// liveChildren returns the children reachable inside the same subroutine.
func (cf *controlFlow) liveChildren(id BlockID) []Edge {
	var out []Edge
	for _, e := range cf.block(id).Children {
		if e.Type == EdgeDead || e.Type.crossesSubRoutine() {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (cf *controlFlow) liveParents(id BlockID) []Edge {
	var out []Edge
	for _, e := range cf.block(id).Parents {
		if e.Type == EdgeDead || e.Type.crossesSubRoutine() {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (cf *controlFlow) isBackEdge(parent, child BlockID) bool {
	return cf.block(parent).Address >= cf.block(child).Address
}

func (cf *controlFlow) backParents(id BlockID) []BlockID {
	var out []BlockID
	for _, p := range cf.liveParents(id) {
		if cf.isBackEdge(p.Block, id) {
			out = append(out, p.Block)
		}
	}
	return out
}

func (cf *controlFlow) lastOpcode(id BlockID) Opcode {
	return cf.s.instructions[cf.block(id).Last()].Opcode
}

// isSingleJump reports whether the block is nothing but a JMP.
func (cf *controlFlow) isSingleJump(id BlockID) bool {
	b := cf.block(id)
	return len(b.Instructions) == 1 && cf.lastOpcode(id) == OpJMP
}

func (cf *controlFlow) singleChild(id BlockID) BlockID {
	ch := cf.liveChildren(id)
	if len(ch) != 1 {
		return NoBlock
	}
	return ch[0].Block
}

func (cf *controlFlow) undetermined(id BlockID) bool {
	return len(cf.block(id).Controls) == 0
}

// nextBlock returns the reachable block that textually follows id.
func (cf *controlFlow) nextBlock(id BlockID) BlockID {
	for i := int(cf.block(id).Last()) + 1; i < len(cf.s.instructions); {
		b := cf.block(cf.s.instructions[i].Block)
		if !b.Unreachable {
			return b.ID
		}
		i = int(b.Last()) + 1
	}
	return NoBlock
}

// hasPath reports whether to can be reached from from by following only
// forward, live edges.
func (cf *controlFlow) hasPath(from, to BlockID) bool {
	if from == to {
		return true
	}
	limit := cf.block(to).Address
	seen := map[BlockID]bool{from: true}
	work := []BlockID{from}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		for _, e := range cf.liveChildren(cur) {
			if e.Block == to {
				return true
			}
			if seen[e.Block] || cf.isBackEdge(cur, e.Block) || cf.block(e.Block).Address > limit {
				continue
			}
			seen[e.Block] = true
			work = append(work, e.Block)
		}
	}
	return false
}

// reachable returns every block reachable from id through forward, live
// edges, including id.
func (cf *controlFlow) reachable(id BlockID) map[BlockID]bool {
	seen := map[BlockID]bool{id: true}
	work := []BlockID{id}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		for _, e := range cf.liveChildren(cur) {
			if seen[e.Block] || cf.isBackEdge(cur, e.Block) {
				continue
			}
			seen[e.Block] = true
			work = append(work, e.Block)
		}
	}
	return seen
}

// innermostLoop returns the smallest recognized loop whose address range
// contains id, within the same subroutine.
func (cf *controlFlow) innermostLoop(id BlockID) (loop, bool) {
	b := cf.block(id)
	var best loop
	found := false
	for _, l := range cf.loops {
		h, t := cf.block(l.head), cf.block(l.tail)
		if h.SubRoutine != b.SubRoutine || b.Address < h.Address || b.Address > t.Address {
			continue
		}
		if !found || h.Address > cf.block(best.head).Address {
			best, found = l, true
		}
	}
	return best, found
}

func (cf *controlFlow) addLoop(l loop) {
	cf.loops = append(cf.loops, l)
	head, tail, next := ControlWhileHead, ControlWhileTail, ControlWhileNext
	if l.doWhile {
		head, tail, next = ControlDoWhileHead, ControlDoWhileTail, ControlDoWhileNext
	}
	cf.tag(l.head, loopControl(head, l.head, l.tail, l.next))
	cf.tag(l.tail, loopControl(tail, l.head, l.tail, l.next))
	cf.tag(l.next, loopControl(next, l.head, l.tail, l.next))
	glog.V(2).Infof("loop %08X..%08X, next %08X (do-while %v)",
		cf.block(l.head).Address, cf.block(l.tail).Address, cf.block(l.next).Address, l.doWhile)
}

// highest returns the block with the highest address.
func (cf *controlFlow) highest(ids []BlockID) BlockID {
	best := ids[0]
	for _, id := range ids[1:] {
		if cf.block(id).Address > cf.block(best).Address {
			best = id
		}
	}
	return best
}

// exitsTo reports whether the conditional jump ending head leads to next.
func (cf *controlFlow) exitsTo(head, next BlockID) bool {
	if !cf.lastOpcode(head).IsConditional() {
		return false
	}
	for _, e := range cf.liveChildren(head) {
		if e.Block == next {
			return true
		}
	}
	return false
}

// detectDoWhile finds loops entered at the top and closed by a single
// jump back to the head. When the head itself can leave to the block after
// the tail, the loop is a while instead.
func (cf *controlFlow) detectDoWhile() {
	for _, head := range cf.order {
		backs := cf.backParents(head)
		if len(backs) == 0 {
			continue
		}
		all := true
		for _, p := range backs {
			if !cf.isSingleJump(p) {
				all = false
				break
			}
		}
		if !all {
			continue
		}
		tail := cf.highest(backs)
		next := cf.nextBlock(tail)
		if next == NoBlock || cf.exitsTo(head, next) {
			continue
		}
		cf.addLoop(loop{head: head, tail: tail, next: next, doWhile: true})
	}
}

// detectWhile finds loops whose back edges all come from unconditional
// jumps.
func (cf *controlFlow) detectWhile() {
	for _, head := range cf.order {
		if cf.block(head).IsLoopHead() {
			continue
		}
		backs := cf.backParents(head)
		if len(backs) == 0 {
			continue
		}
		all := true
		for _, p := range backs {
			if cf.lastOpcode(p) != OpJMP {
				all = false
				break
			}
		}
		if !all {
			continue
		}
		tail := cf.highest(backs)
		next := cf.nextBlock(tail)
		if next == NoBlock {
			continue
		}
		cf.addLoop(loop{head: head, tail: tail, next: next})
	}
}

// detectBreak tags single jumps to the block after the innermost loop.
func (cf *controlFlow) detectBreak() {
	for _, id := range cf.order {
		if !cf.undetermined(id) || !cf.isSingleJump(id) {
			continue
		}
		l, ok := cf.innermostLoop(id)
		if !ok || cf.singleChild(id) != l.next {
			continue
		}
		cf.tag(id, loopControl(ControlBreak, l.head, l.tail, l.next))
	}
}

// detectContinue tags single jumps back to the tail or the head of the
// innermost loop.
func (cf *controlFlow) detectContinue() {
	for _, id := range cf.order {
		if !cf.undetermined(id) || !cf.isSingleJump(id) {
			continue
		}
		l, ok := cf.innermostLoop(id)
		if !ok {
			continue
		}
		child := cf.singleChild(id)
		if child != l.tail && child != l.head {
			continue
		}
		cf.tag(id, loopControl(ControlContinue, l.head, l.tail, l.next))
	}
}

// detectReturn tags blocks that end in RETN, and single jumps whose only
// destination is such a block.
func (cf *controlFlow) detectReturn() {
	for _, id := range cf.order {
		if cf.lastOpcode(id) != OpRETN {
			continue
		}
		ret := newControl(ControlReturn)
		ret.Return = id
		for _, p := range cf.liveParents(id) {
			if cf.undetermined(p.Block) && cf.isSingleJump(p.Block) {
				cf.tag(p.Block, ret)
			}
		}
		cf.tag(id, ret)
	}
}

// conditionalChildren returns the true and false children of a block that
// ends in a conditional jump with both edges live.
func (cf *controlFlow) conditionalChildren(id BlockID) (yes, no BlockID, ok bool) {
	yes, no = NoBlock, NoBlock
	for _, e := range cf.block(id).Children {
		switch e.Type {
		case EdgeConditionalTrue:
			yes = e.Block
		case EdgeConditionalFalse:
			no = e.Block
		case EdgeDead:
			return NoBlock, NoBlock, false
		}
	}
	return yes, no, yes != NoBlock && no != NoBlock
}

// detectIf tags if and if-else structures on every block ending in a live
// conditional jump. The lower-addressed child is always the first arm; when
// the higher one can be reached from it, there is no else.
func (cf *controlFlow) detectIf() {
	for _, id := range cf.order {
		b := cf.block(id)
		if b.Is(ControlIfCond) {
			continue
		}
		yes, no, ok := cf.conditionalChildren(id)
		if !ok {
			continue
		}
		whileHead, isWhile := b.Control(ControlWhileHead)

		if isWhile {
			body := yes
			if body == whileHead.LoopNext {
				body = no
			}
			cf.tag(id, ifControl(ControlIfCond, id, body, NoBlock, whileHead.LoopNext))
			cf.tag(body, ifControl(ControlIfTrue, id, body, NoBlock, whileHead.LoopNext))
			continue
		}

		if tail, next, ok := cf.doWhileCondition(yes, no); ok {
			cf.tag(id, ifControl(ControlIfCond, id, tail, NoBlock, next))
			continue
		}

		lo, hi := yes, no
		if cf.block(lo).Address > cf.block(hi).Address {
			lo, hi = hi, lo
		}

		if cf.reaches(lo, hi) {
			cf.tag(id, ifControl(ControlIfCond, id, lo, NoBlock, hi))
			cf.tag(lo, ifControl(ControlIfTrue, id, lo, NoBlock, hi))
			cf.tag(hi, ifControl(ControlIfNext, id, lo, NoBlock, hi))
			continue
		}

		next := cf.mergePoint(lo, hi)
		cf.tag(id, ifControl(ControlIfCond, id, lo, hi, next))
		cf.tag(lo, ifControl(ControlIfTrue, id, lo, hi, next))
		cf.tag(hi, ifControl(ControlIfElse, id, lo, hi, next))
		if next != NoBlock {
			cf.tag(next, ifControl(ControlIfNext, id, lo, hi, next))
		}
	}
}

// doWhileCondition reports whether a conditional jump with children yes
// and no is the closing test of a do-while loop: one child is the loop's
// tail and the other the block after it.
func (cf *controlFlow) doWhileCondition(yes, no BlockID) (tail, next BlockID, ok bool) {
	for _, pair := range [2][2]BlockID{{yes, no}, {no, yes}} {
		c, found := cf.block(pair[0]).Control(ControlDoWhileTail)
		if found && c.LoopNext == pair[1] {
			return pair[0], pair[1], true
		}
	}
	return NoBlock, NoBlock, false
}

// isExit reports whether the block leaves the current statement through a
// break, a continue or a jump to a return.
func (cf *controlFlow) isExit(id BlockID) bool {
	b := cf.block(id)
	if b.Is(ControlBreak) || b.Is(ControlContinue) {
		return true
	}
	c, ok := b.Control(ControlReturn)
	return ok && c.Return != id
}

// reaches is like hasPath, but a path ending in an exit also counts.
func (cf *controlFlow) reaches(from, to BlockID) bool {
	if cf.hasPath(from, to) {
		return true
	}
	limit := cf.block(to).Address
	seen := map[BlockID]bool{from: true}
	work := []BlockID{from}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		if cf.isExit(cur) {
			return true
		}
		for _, e := range cf.liveChildren(cur) {
			if seen[e.Block] || cf.isBackEdge(cur, e.Block) || cf.block(e.Block).Address >= limit {
				continue
			}
			seen[e.Block] = true
			work = append(work, e.Block)
		}
	}
	return false
}

// mergePoint returns the lowest block after hi reachable from both arms.
func (cf *controlFlow) mergePoint(lo, hi BlockID) BlockID {
	a, b := cf.reachable(lo), cf.reachable(hi)
	var common []BlockID
	for id := range a {
		if b[id] && cf.block(id).Address > cf.block(hi).Address {
			common = append(common, id)
		}
	}
	if len(common) == 0 {
		return NoBlock
	}
	sort.Slice(common, func(i, j int) bool {
		return cf.block(common[i]).Address < cf.block(common[j]).Address
	})
	return common[0]
}

// verify checks that the tags explain every back edge and conditional
// jump, and that loops are well formed.
func (cf *controlFlow) verify() error {
	for _, id := range cf.order {
		b := cf.block(id)
		if len(cf.backParents(id)) > 0 && !b.IsLoopHead() {
			return structuralErrorf(b.Address, "back edge into a block that is not a loop head")
		}
		if _, _, ok := cf.conditionalChildren(id); ok && !b.Is(ControlIfCond) {
			return structuralErrorf(b.Address, "conditional jump not part of any if or loop")
		}
	}

	for _, l := range cf.loops {
		h, t, n := cf.block(l.head), cf.block(l.tail), cf.block(l.next)
		if !(h.Address < t.Address && t.Address < n.Address) {
			return structuralErrorf(h.Address, "malformed loop: head %08X, tail %08X, next %08X", h.Address, t.Address, n.Address)
		}
		if !cf.hasPath(l.head, l.tail) || !cf.hasPath(l.head, l.next) {
			return structuralErrorf(h.Address, "loop tail or exit unreachable from head")
		}
		for _, id := range cf.s.subs[h.SubRoutine].Blocks {
			b := cf.block(id)
			if b.Address < h.Address || b.Address > t.Address {
				continue
			}
			for _, e := range cf.liveChildren(id) {
				c := cf.block(e.Block)
				inside := c.Address >= h.Address && c.Address <= t.Address
				if inside || e.Block == l.next || c.Is(ControlReturn) {
					continue
				}
				return structuralErrorf(b.Address, "jump from loop %08X to %08X escapes it", h.Address, c.Address)
			}
		}
	}
	return nil
}
