package nwscript

import (
	"fmt"
	"sort"

	"github.com/golang/glog"
)

// SubRoutine is a group of blocks reachable from one entry block without
// crossing a call or store edge.
type SubRoutine struct {
	ID      SubRoutineID
	Address uint32
	Type    SubRoutineType
	// Name is set for the well-known subroutines; see DisplayName.
	Name string

	Blocks []BlockID // Address order; Blocks[0] is the entry block

	Callers []SubRoutineID
	Callees []SubRoutineID

	Entry   InstructionID
	Returns []InstructionID // Every RETN in the subroutine

	// Filled by stack analysis. Params[0] is the slot on top of the stack
	// at the call; Results follow the parameters going down.
	Params  []VariableID
	Results []VariableID

	state    AnalysisState
	analyzed bool
}

// DisplayName returns Name, or a name derived from the address.
func (sub *SubRoutine) DisplayName() string {
	if sub.Name != "" {
		return sub.Name
	}
	return fmt.Sprintf("sub_%08X", sub.Address)
}

// Analyzed reports whether stack analysis simulated the subroutine.
// Subroutines unreachable from main are never simulated.
func (sub *SubRoutine) Analyzed() bool { return sub.analyzed }

// isSubRoutineStart reports whether b is entered from nowhere, starts the
// code, or is the target of a call or store. A call target may also be a
// loop head inside its own subroutine.
func (s *Script) isSubRoutineStart(b *Block) bool {
	if len(b.Parents) == 0 || b.First() == 0 {
		return true
	}
	for _, p := range b.Parents {
		if p.Type.crossesSubRoutine() {
			return true
		}
	}
	return false
}

// constructSubRoutines groups the blocks into subroutines.
func (s *Script) constructSubRoutines() error {
	for _, bid := range s.blockOrder {
		b := &s.blocks[bid]
		if b.Unreachable || !s.isSubRoutineStart(b) {
			continue
		}
		id := SubRoutineID(len(s.subs))
		in := &s.instructions[b.First()]
		s.subs = append(s.subs, SubRoutine{
			ID:      id,
			Address: b.Address,
			Entry:   b.First(),
		})
		if err := s.absorb(id, bid); err != nil {
			return err
		}
		glog.V(2).Infof("subroutine %08X (%s)", in.Address, in.AddressType)
	}

	// Unreachable code belongs to the subroutine laid out before it.
	owner := NoSubRoutine
	for _, bid := range s.blockOrder {
		b := &s.blocks[bid]
		if b.Unreachable && owner != NoSubRoutine {
			b.SubRoutine = owner
			s.subs[owner].Blocks = append(s.subs[owner].Blocks, bid)
		}
		if b.SubRoutine == NoSubRoutine {
			return structuralErrorf(b.Address, "block belongs to no subroutine")
		}
		owner = b.SubRoutine
	}

	for i := range s.subs {
		sub := &s.subs[i]
		sort.Slice(sub.Blocks, func(a, b int) bool {
			return s.blocks[sub.Blocks[a]].Address < s.blocks[sub.Blocks[b]].Address
		})
		for _, bid := range sub.Blocks {
			if s.blocks[bid].Unreachable {
				continue
			}
			for _, id := range s.blocks[bid].Instructions {
				if s.instructions[id].Opcode == OpRETN {
					sub.Returns = append(sub.Returns, id)
				}
			}
		}
	}
	return nil
}

// absorb adds block bid and everything reachable from it without crossing
// a call or store edge to subroutine id.
func (s *Script) absorb(id SubRoutineID, bid BlockID) error {
	b := &s.blocks[bid]
	if b.SubRoutine == id {
		return nil
	}
	if b.SubRoutine != NoSubRoutine {
		return structuralErrorf(b.Address, "block claimed by subroutines %08X and %08X",
			s.subs[b.SubRoutine].Address, s.subs[id].Address)
	}
	b.SubRoutine = id
	s.subs[id].Blocks = append(s.subs[id].Blocks, bid)
	for _, e := range b.Children {
		if e.Type.crossesSubRoutine() {
			continue
		}
		if err := s.absorb(id, e.Block); err != nil {
			return err
		}
	}
	return nil
}

// linkCallers fills the caller and callee sets from the JSR instructions.
func (s *Script) linkCallers() {
	for i := range s.subs {
		caller := SubRoutineID(i)
		for _, bid := range s.subs[i].Blocks {
			if s.blocks[bid].Unreachable {
				continue
			}
			for _, id := range s.blocks[bid].Instructions {
				in := &s.instructions[id]
				if in.Opcode != OpJSR {
					continue
				}
				callee := s.blocks[s.instructions[in.Branches[0]].Block].SubRoutine
				s.subs[caller].Callees = appendUniqueSub(s.subs[caller].Callees, callee)
				s.subs[callee].Callers = appendUniqueSub(s.subs[callee].Callers, caller)
			}
		}
	}
}

func appendUniqueSub(list []SubRoutineID, id SubRoutineID) []SubRoutineID {
	for _, x := range list {
		if x == id {
			return list
		}
	}
	return append(list, id)
}

// lastCall returns the last JSR, in address order, inside subroutine id.
func (s *Script) lastCall(id SubRoutineID) InstructionID {
	last := NoInstruction
	for _, bid := range s.subs[id].Blocks {
		if s.blocks[bid].Unreachable {
			continue
		}
		for _, iid := range s.blocks[bid].Instructions {
			if s.instructions[iid].Opcode == OpJSR {
				if last == NoInstruction || s.instructions[iid].Address > s.instructions[last].Address {
					last = iid
				}
			}
		}
	}
	return last
}

// classifySubRoutines assigns the well-known roles: the entry subroutine,
// deferred store-state code, the global initializer and main. A script
// without a recognizable main is reported as a soft error.
func (s *Script) classifySubRoutines() error {
	if len(s.subs) == 0 {
		return softError(ErrNoMainSubRoutine, "script has no code")
	}

	entry := &s.subs[0]
	if len(entry.Callers) > 0 {
		return structuralErrorf(entry.Address, "entry subroutine is called from %d subroutines", len(entry.Callers))
	}
	entry.Type = SubRoutineStart
	entry.Name = "_start"
	s.entry = entry.ID

	for i := range s.subs {
		sub := &s.subs[i]
		for _, p := range s.blocks[sub.Blocks[0]].Parents {
			if p.Type == EdgeSubRoutineStore {
				sub.Type = SubRoutineStoreState
				break
			}
		}
	}

	for i := range s.subs {
		if s.containsOpcode(SubRoutineID(i), OpSAVEBP) {
			if s.global != NoSubRoutine {
				glog.Warningf("SAVEBP in both %s and %s", s.subs[s.global].DisplayName(), s.subs[i].DisplayName())
				s.global = NoSubRoutine
				break
			}
			s.global = SubRoutineID(i)
		}
	}
	caller := s.entry
	if s.global != NoSubRoutine && s.global != s.entry {
		s.subs[s.global].Type = SubRoutineGlobal
		s.subs[s.global].Name = "_global"
		caller = s.global
	}

	call := s.lastCall(caller)
	if call == NoInstruction {
		return softError(ErrNoMainSubRoutine, "%s calls no subroutine", s.subs[caller].DisplayName())
	}
	main := s.blocks[s.instructions[s.instructions[call].Branches[0]].Block].SubRoutine
	if main == s.entry || main == s.global {
		return softError(ErrNoMainSubRoutine, "%s calls itself", s.subs[caller].DisplayName())
	}
	s.main = main
	s.mainCall = call

	if s.instructions[entry.Entry].Opcode == OpRSADD {
		s.subs[main].Type = SubRoutineStartCond
		s.subs[main].Name = "StartingConditional"
	} else {
		s.subs[main].Type = SubRoutineMain
		s.subs[main].Name = "main"
	}
	glog.V(1).Infof("%d subroutines, %s at %08X", len(s.subs), s.subs[main].Name, s.subs[main].Address)
	return nil
}

func (s *Script) containsOpcode(id SubRoutineID, op Opcode) bool {
	for _, bid := range s.subs[id].Blocks {
		if s.blocks[bid].Unreachable {
			continue
		}
		for _, iid := range s.blocks[bid].Instructions {
			if s.instructions[iid].Opcode == op {
				return true
			}
		}
	}
	return false
}
