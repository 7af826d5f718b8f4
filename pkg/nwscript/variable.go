package nwscript

// TypeEvent records one change of a variable's inferred type.
type TypeEvent struct {
	Instruction InstructionID // NoInstruction when caused by a merge
	From, To    Type
}

// Variable is one stack slot value as tracked by stack analysis.
type Variable struct {
	ID   VariableID
	Type Type
	Use  VariableUse

	Creator InstructionID
	Readers []InstructionID
	Writers []InstructionID

	// Duplicates are copies made by CPTOPSP/CPTOPBP, in both directions.
	Duplicates []VariableID
	// Siblings are the variables occupying the same slot on another path
	// into a merge point.
	Siblings []VariableID

	TypeLog []TypeEvent
}

func (s *Script) newVariable(t Type, use VariableUse, creator InstructionID) VariableID {
	id := VariableID(len(s.variables))
	s.variables = append(s.variables, Variable{
		ID:      id,
		Type:    t,
		Use:     use,
		Creator: creator,
	})
	if creator != NoInstruction {
		in := &s.instructions[creator]
		in.Pushes = append(in.Pushes, id)
	}
	return id
}

func appendUniqueInst(list []InstructionID, id InstructionID) []InstructionID {
	for _, x := range list {
		if x == id {
			return list
		}
	}
	return append(list, id)
}

func appendUniqueVar(list []VariableID, id VariableID) []VariableID {
	for _, x := range list {
		if x == id {
			return list
		}
	}
	return append(list, id)
}

func (s *Script) markRead(v VariableID, by InstructionID) {
	s.variables[v].Readers = appendUniqueInst(s.variables[v].Readers, by)
	in := &s.instructions[by]
	in.Reads = appendUniqueVar(in.Reads, v)
}

func (s *Script) markWritten(v VariableID, by InstructionID) {
	s.variables[v].Writers = appendUniqueInst(s.variables[v].Writers, by)
	in := &s.instructions[by]
	in.Writes = appendUniqueVar(in.Writes, v)
}

func (s *Script) linkDuplicates(a, b VariableID) {
	s.variables[a].Duplicates = appendUniqueVar(s.variables[a].Duplicates, b)
	s.variables[b].Duplicates = appendUniqueVar(s.variables[b].Duplicates, a)
}

func (s *Script) linkSiblings(a, b VariableID) {
	if a == b {
		return
	}
	s.variables[a].Siblings = appendUniqueVar(s.variables[a].Siblings, b)
	s.variables[b].Siblings = appendUniqueVar(s.variables[b].Siblings, a)
}

// group returns v together with every variable reachable through sibling
// and duplicate links.
func (s *Script) group(v VariableID) []VariableID {
	seen := map[VariableID]bool{v: true}
	out := []VariableID{v}
	for i := 0; i < len(out); i++ {
		cur := &s.variables[out[i]]
		for _, lists := range [2][]VariableID{cur.Siblings, cur.Duplicates} {
			for _, w := range lists {
				if !seen[w] {
					seen[w] = true
					out = append(out, w)
				}
			}
		}
	}
	return out
}

// setType assigns t to v and to every untyped member of its group.
// A member already carrying a different concrete type is a conflict.
func (s *Script) setType(v VariableID, t Type, by InstructionID) error {
	for _, w := range s.group(v) {
		wv := &s.variables[w]
		switch {
		case wv.Type == t:
		case wv.Type == TypeAny:
			wv.TypeLog = append(wv.TypeLog, TypeEvent{Instruction: by, From: wv.Type, To: t})
			wv.Type = t
		default:
			return s.typeConflict(w, wv.Type, t, by)
		}
	}
	return nil
}

func (s *Script) typeConflict(v VariableID, have, want Type, by InstructionID) error {
	if by != NoInstruction {
		return structuralErrorf(s.instructions[by].Address, "type mismatch: variable %d is %s, need %s", v, have, want)
	}
	return structuralError("type mismatch: variable %d is %s, need %s", v, have, want)
}

// requireType unifies v with the expected type t. TypeAny on either side
// matches anything.
func (s *Script) requireType(v VariableID, t Type, by InstructionID) error {
	have := s.variables[v].Type
	switch {
	case have == t, t == TypeAny:
		return nil
	case have == TypeAny:
		return s.setType(v, t, by)
	default:
		return s.typeConflict(v, have, t, by)
	}
}

// unify makes a and b agree on a type.
func (s *Script) unify(a, b VariableID, by InstructionID) error {
	ta, tb := s.variables[a].Type, s.variables[b].Type
	switch {
	case ta == tb:
		return nil
	case ta == TypeAny:
		return s.setType(a, tb, by)
	case tb == TypeAny:
		return s.setType(b, ta, by)
	default:
		return s.typeConflict(a, ta, tb, by)
	}
}

// checkGroupTypes verifies that every variable agrees in type with its
// siblings and duplicates.
func (s *Script) checkGroupTypes() error {
	for i := range s.variables {
		v := &s.variables[i]
		for _, lists := range [2][]VariableID{v.Siblings, v.Duplicates} {
			for _, w := range lists {
				if err := s.unify(v.ID, w, NoInstruction); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
