// Package nwscript decodes compiled NWScript bytecode (NCS files) and
// recovers its structure.
//
// A Script is built once from the raw bytes: instructions are decoded and
// linked, partitioned into basic blocks and grouped into subroutines. Two
// further passes can be run on demand: stack analysis, which infers a type
// and a role for every value, and control-flow analysis, which overlays
// loops, conditionals, breaks, continues and returns onto the block graph.
//
// All nodes (instructions, blocks, subroutines, variables) live in arenas
// owned by the Script and reference each other by index.
package nwscript

import "fmt"

// Opcode is the operation selector byte of one instruction.
type Opcode uint8

const (
	OpCPDOWNSP      Opcode = 0x01
	OpRSADD         Opcode = 0x02
	OpCPTOPSP       Opcode = 0x03
	OpCONST         Opcode = 0x04
	OpACTION        Opcode = 0x05
	OpLOGAND        Opcode = 0x06
	OpLOGOR         Opcode = 0x07
	OpINCOR         Opcode = 0x08
	OpEXCOR         Opcode = 0x09
	OpBOOLAND       Opcode = 0x0A
	OpEQ            Opcode = 0x0B
	OpNEQ           Opcode = 0x0C
	OpGEQ           Opcode = 0x0D
	OpGT            Opcode = 0x0E
	OpLT            Opcode = 0x0F
	OpLEQ           Opcode = 0x10
	OpSHLEFT        Opcode = 0x11
	OpSHRIGHT       Opcode = 0x12
	OpUSHRIGHT      Opcode = 0x13
	OpADD           Opcode = 0x14
	OpSUB           Opcode = 0x15
	OpMUL           Opcode = 0x16
	OpDIV           Opcode = 0x17
	OpMOD           Opcode = 0x18
	OpNEG           Opcode = 0x19
	OpCOMP          Opcode = 0x1A
	OpMOVSP         Opcode = 0x1B
	OpSTORESTATEALL Opcode = 0x1C
	OpJMP           Opcode = 0x1D
	OpJSR           Opcode = 0x1E
	OpJZ            Opcode = 0x1F
	OpRETN          Opcode = 0x20
	OpDESTRUCT      Opcode = 0x21
	OpNOT           Opcode = 0x22
	OpDECSP         Opcode = 0x23
	OpINCSP         Opcode = 0x24
	OpJNZ           Opcode = 0x25
	OpCPDOWNBP      Opcode = 0x26
	OpCPTOPBP       Opcode = 0x27
	OpDECBP         Opcode = 0x28
	OpINCBP         Opcode = 0x29
	OpSAVEBP        Opcode = 0x2A
	OpRESTOREBP     Opcode = 0x2B
	OpSTORESTATE    Opcode = 0x2C
	OpNOP           Opcode = 0x2D
	OpWRITEARRAY    Opcode = 0x30
	OpREADARRAY     Opcode = 0x32
	OpGETREF        Opcode = 0x37
	OpGETREFARRAY   Opcode = 0x39
	OpSCRIPTSIZE    Opcode = 0x42
)

var opcodeNames = map[Opcode]string{
	OpCPDOWNSP:      "CPDOWNSP",
	OpRSADD:         "RSADD",
	OpCPTOPSP:       "CPTOPSP",
	OpCONST:         "CONST",
	OpACTION:        "ACTION",
	OpLOGAND:        "LOGAND",
	OpLOGOR:         "LOGOR",
	OpINCOR:         "INCOR",
	OpEXCOR:         "EXCOR",
	OpBOOLAND:       "BOOLAND",
	OpEQ:            "EQ",
	OpNEQ:           "NEQ",
	OpGEQ:           "GEQ",
	OpGT:            "GT",
	OpLT:            "LT",
	OpLEQ:           "LEQ",
	OpSHLEFT:        "SHLEFT",
	OpSHRIGHT:       "SHRIGHT",
	OpUSHRIGHT:      "USHRIGHT",
	OpADD:           "ADD",
	OpSUB:           "SUB",
	OpMUL:           "MUL",
	OpDIV:           "DIV",
	OpMOD:           "MOD",
	OpNEG:           "NEG",
	OpCOMP:          "COMP",
	OpMOVSP:         "MOVSP",
	OpSTORESTATEALL: "STORESTATEALL",
	OpJMP:           "JMP",
	OpJSR:           "JSR",
	OpJZ:            "JZ",
	OpRETN:          "RETN",
	OpDESTRUCT:      "DESTRUCT",
	OpNOT:           "NOT",
	OpDECSP:         "DECSP",
	OpINCSP:         "INCSP",
	OpJNZ:           "JNZ",
	OpCPDOWNBP:      "CPDOWNBP",
	OpCPTOPBP:       "CPTOPBP",
	OpDECBP:         "DECBP",
	OpINCBP:         "INCBP",
	OpSAVEBP:        "SAVEBP",
	OpRESTOREBP:     "RESTOREBP",
	OpSTORESTATE:    "STORESTATE",
	OpNOP:           "NOP",
	OpWRITEARRAY:    "WRITEARRAY",
	OpREADARRAY:     "READARRAY",
	OpGETREF:        "GETREF",
	OpGETREFARRAY:   "GETREFARRAY",
	OpSCRIPTSIZE:    "SCRIPTSIZE",
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op_%02X", uint8(op))
}

// IsJump reports whether op transfers control within a subroutine.
func (op Opcode) IsJump() bool {
	return op == OpJMP || op == OpJZ || op == OpJNZ
}

// IsConditional reports whether op is a conditional jump.
func (op Opcode) IsConditional() bool {
	return op == OpJZ || op == OpJNZ
}

// InstructionType is the operand-type byte of an instruction.
type InstructionType uint8

const (
	InstTypeNone                    InstructionType = 0
	InstTypeDirect                  InstructionType = 1
	InstTypeInt                     InstructionType = 3
	InstTypeFloat                   InstructionType = 4
	InstTypeString                  InstructionType = 5
	InstTypeObject                  InstructionType = 6
	InstTypeEngineType0             InstructionType = 16
	InstTypeEngineType1             InstructionType = 17
	InstTypeEngineType2             InstructionType = 18
	InstTypeEngineType3             InstructionType = 19
	InstTypeEngineType4             InstructionType = 20
	InstTypeEngineType5             InstructionType = 21
	InstTypeIntInt                  InstructionType = 32
	InstTypeFloatFloat              InstructionType = 33
	InstTypeObjectObject            InstructionType = 34
	InstTypeStringString            InstructionType = 35
	InstTypeStructStruct            InstructionType = 36
	InstTypeIntFloat                InstructionType = 37
	InstTypeFloatInt                InstructionType = 38
	InstTypeEngineType0EngineType0  InstructionType = 48
	InstTypeEngineType1EngineType1  InstructionType = 49
	InstTypeEngineType2EngineType2  InstructionType = 50
	InstTypeEngineType3EngineType3  InstructionType = 51
	InstTypeEngineType4EngineType4  InstructionType = 52
	InstTypeEngineType5EngineType5  InstructionType = 53
	InstTypeVectorVector            InstructionType = 58
	InstTypeVectorFloat             InstructionType = 59
	InstTypeFloatVector             InstructionType = 60
	InstTypeIntArray                InstructionType = 64
	InstTypeFloatArray              InstructionType = 65
	InstTypeStringArray             InstructionType = 66
	InstTypeObjectArray             InstructionType = 67
	InstTypeResourceArray           InstructionType = 68
	InstTypeEngineType0Array        InstructionType = 80
	InstTypeEngineType1Array        InstructionType = 81
	InstTypeEngineType2Array        InstructionType = 82
	InstTypeEngineType3Array        InstructionType = 83
	InstTypeEngineType4Array        InstructionType = 84
	InstTypeEngineType5Array        InstructionType = 85
	InstTypeResource                InstructionType = 96
)

// Suffix returns the mnemonic suffix of the operand type, e.g. "II" for
// int-int. Direct and none types have no suffix.
func (t InstructionType) Suffix() string {
	switch {
	case t == InstTypeNone || t == InstTypeDirect:
		return ""
	case t == InstTypeInt:
		return "I"
	case t == InstTypeFloat:
		return "F"
	case t == InstTypeString:
		return "S"
	case t == InstTypeObject:
		return "O"
	case t == InstTypeResource:
		return "R"
	case t >= InstTypeEngineType0 && t <= InstTypeEngineType5:
		return fmt.Sprintf("E%d", t-InstTypeEngineType0)
	case t == InstTypeIntInt:
		return "II"
	case t == InstTypeFloatFloat:
		return "FF"
	case t == InstTypeObjectObject:
		return "OO"
	case t == InstTypeStringString:
		return "SS"
	case t == InstTypeStructStruct:
		return "TT"
	case t == InstTypeIntFloat:
		return "IF"
	case t == InstTypeFloatInt:
		return "FI"
	case t >= InstTypeEngineType0EngineType0 && t <= InstTypeEngineType5EngineType5:
		n := t - InstTypeEngineType0EngineType0
		return fmt.Sprintf("E%dE%d", n, n)
	case t == InstTypeVectorVector:
		return "VV"
	case t == InstTypeVectorFloat:
		return "VF"
	case t == InstTypeFloatVector:
		return "FV"
	case t == InstTypeIntArray:
		return "IA"
	case t == InstTypeFloatArray:
		return "FA"
	case t == InstTypeStringArray:
		return "SA"
	case t == InstTypeObjectArray:
		return "OA"
	case t == InstTypeResourceArray:
		return "RA"
	case t >= InstTypeEngineType0Array && t <= InstTypeEngineType5Array:
		return fmt.Sprintf("E%dA", t-InstTypeEngineType0Array)
	default:
		return fmt.Sprintf("<%02X>", uint8(t))
	}
}

// Type is the inferred type of a Variable or a function parameter.
//
// The low byte holds the base type; the array and reference bits wrap it.
type Type uint16

const (
	TypeVoid Type = iota
	TypeAny
	TypeInt
	TypeFloat
	TypeString
	TypeResource
	TypeObject
	TypeVector
	TypeStruct
	TypeEngineType0
	TypeEngineType1
	TypeEngineType2
	TypeEngineType3
	TypeEngineType4
	TypeEngineType5
	TypeScriptState
)

const (
	typeArrayBit     Type = 0x100
	typeReferenceBit Type = 0x200
	typeBaseMask     Type = 0x0FF
)

// ArrayOf returns the array type with elements of type t.
func ArrayOf(t Type) Type { return t | typeArrayBit }

// ReferenceTo returns the reference type pointing at type t.
func ReferenceTo(t Type) Type { return t | typeReferenceBit }

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return t&typeArrayBit != 0 }

// IsReference reports whether t is a reference type.
func (t Type) IsReference() bool { return t&typeReferenceBit != 0 }

// Elem returns the element type of an array, or the target of a reference.
func (t Type) Elem() Type {
	if t.IsReference() {
		return t &^ typeReferenceBit
	}
	return t &^ typeArrayBit
}

// IsEngineType reports whether t is one of the opaque engine types.
func (t Type) IsEngineType() bool {
	return t >= TypeEngineType0 && t <= TypeEngineType5
}

// EngineType returns an engine type by slot number.
func EngineType(slot int) Type {
	return TypeEngineType0 + Type(slot)
}

var typeNames = map[Type]string{
	TypeVoid:        "void",
	TypeAny:         "any",
	TypeInt:         "int",
	TypeFloat:       "float",
	TypeString:      "string",
	TypeResource:    "resource",
	TypeObject:      "object",
	TypeVector:      "vector",
	TypeStruct:      "struct",
	TypeEngineType0: "E0",
	TypeEngineType1: "E1",
	TypeEngineType2: "E2",
	TypeEngineType3: "E3",
	TypeEngineType4: "E4",
	TypeEngineType5: "E5",
	TypeScriptState: "action",
}

func (t Type) String() string {
	switch {
	case t.IsReference():
		return t.Elem().String() + "&"
	case t.IsArray():
		return t.Elem().String() + "[]"
	}
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type_%d", uint16(t))
}

// ParseType resolves the textual name of a type as used in function tables.
// Engine types may be given by slot ("E0") or by the game's own name when
// engineNames lists it.
func ParseType(name string, engineNames []string) (Type, error) {
	if len(name) > 2 && name[len(name)-2:] == "[]" {
		t, err := ParseType(name[:len(name)-2], engineNames)
		if err != nil {
			return TypeVoid, err
		}
		return ArrayOf(t), nil
	}
	if len(name) > 1 && name[len(name)-1] == '&' {
		t, err := ParseType(name[:len(name)-1], engineNames)
		if err != nil {
			return TypeVoid, err
		}
		return ReferenceTo(t), nil
	}
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	for i, n := range engineNames {
		if n == name {
			return EngineType(i), nil
		}
	}
	return TypeVoid, fmt.Errorf("unknown type %q", name)
}

// AddressType classifies why an instruction address is a control-flow entry.
// Higher values take precedence when an address is reached several ways.
type AddressType uint8

const (
	AddressPlain      AddressType = iota // Reached only by falling through
	AddressTail                          // False branch of a conditional jump
	AddressJumpLabel                     // Jump destination
	AddressStoreState                    // Entry of deferred code captured by STORESTATE
	AddressSubRoutine                    // Entry of a subroutine called by JSR
)

func (a AddressType) String() string {
	switch a {
	case AddressPlain:
		return "plain"
	case AddressTail:
		return "tail"
	case AddressJumpLabel:
		return "label"
	case AddressStoreState:
		return "storestate"
	case AddressSubRoutine:
		return "subroutine"
	default:
		return "[unknown]"
	}
}

// EdgeType is the kind of a control-flow edge between two blocks.
type EdgeType uint8

const (
	EdgeUnconditional    EdgeType = iota
	EdgeConditionalTrue           // Taken when the tested value is non-zero
	EdgeConditionalFalse          // Taken when the tested value is zero
	EdgeSubRoutineCall            // JSR into the callee's entry
	EdgeSubRoutineTail            // From a JSR or STORESTATE to the instruction after it
	EdgeSubRoutineStore           // STORESTATE into the captured deferred code
	EdgeDead                      // Provably never taken
)

func (e EdgeType) String() string {
	switch e {
	case EdgeUnconditional:
		return "unconditional"
	case EdgeConditionalTrue:
		return "true"
	case EdgeConditionalFalse:
		return "false"
	case EdgeSubRoutineCall:
		return "call"
	case EdgeSubRoutineTail:
		return "tail"
	case EdgeSubRoutineStore:
		return "store"
	case EdgeDead:
		return "dead"
	default:
		return "[unknown]"
	}
}

// IsConditional reports whether e is one of the two conditional edge kinds.
func (e EdgeType) IsConditional() bool {
	return e == EdgeConditionalTrue || e == EdgeConditionalFalse
}

// crossesSubRoutine reports whether an edge of this kind leads into another
// subroutine.
func (e EdgeType) crossesSubRoutine() bool {
	return e == EdgeSubRoutineCall || e == EdgeSubRoutineStore
}

// SubRoutineType classifies a subroutine.
type SubRoutineType uint8

const (
	SubRoutineOrdinary SubRoutineType = iota
	SubRoutineStoreState
	SubRoutineStart
	SubRoutineGlobal
	SubRoutineMain
	SubRoutineStartCond
)

func (t SubRoutineType) String() string {
	switch t {
	case SubRoutineOrdinary:
		return "ordinary"
	case SubRoutineStoreState:
		return "storestate"
	case SubRoutineStart:
		return "start"
	case SubRoutineGlobal:
		return "global"
	case SubRoutineMain:
		return "main"
	case SubRoutineStartCond:
		return "startingconditional"
	default:
		return "[unknown]"
	}
}

// VariableUse is the role a Variable plays.
type VariableUse uint8

const (
	UseUnknown VariableUse = iota
	UseGlobal
	UseLocal
	UseParameter
	UseReturn
)

func (u VariableUse) String() string {
	switch u {
	case UseGlobal:
		return "global"
	case UseLocal:
		return "local"
	case UseParameter:
		return "parameter"
	case UseReturn:
		return "return"
	default:
		return "unknown"
	}
}

// AnalysisState is the re-entrancy marker used by the graph passes.
type AnalysisState uint8

const (
	StateNone AnalysisState = iota
	StateInProgress
	StateFinished
)
