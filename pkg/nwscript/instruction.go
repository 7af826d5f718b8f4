package nwscript

import (
	"fmt"
	"strconv"
	"strings"
)

// Arena indices. The zero value of each is a valid index; use the No*
// constants for "none".
type (
	InstructionID int
	BlockID       int
	SubRoutineID  int
	VariableID    int
)

const (
	NoInstruction InstructionID = -1
	NoBlock       BlockID       = -1
	NoSubRoutine  SubRoutineID  = -1
	NoVariable    VariableID    = -1
)

// ArgType is the encoding of one direct argument.
type ArgType uint8

const (
	ArgNone ArgType = iota
	ArgUint8
	ArgUint16
	ArgSint16
	ArgUint32
	ArgSint32
)

// Constant is the literal pushed by a CONST instruction.
type Constant struct {
	Type   Type
	Int    int32
	Float  float32
	Str    string // Raw bytes; decode with the script's text encoding
	Object uint32
}

func (c Constant) String() string {
	switch c.Type {
	case TypeInt:
		return strconv.Itoa(int(c.Int))
	case TypeFloat:
		return strconv.FormatFloat(float64(c.Float), 'f', -1, 32)
	case TypeString, TypeResource:
		return strconv.Quote(c.Str)
	case TypeObject:
		return fmt.Sprintf("0x%08X", c.Object)
	default:
		return "?"
	}
}

// Instruction is one decoded bytecode instruction plus the links and
// annotations the passes attach to it.
type Instruction struct {
	Address uint32
	Size    int // Encoded length in bytes
	Opcode  Opcode
	Type    InstructionType

	ArgCount int
	Args     [3]int32
	ArgTypes [3]ArgType
	Constant Constant // Only for OpCONST

	AddressType AddressType

	// Follower is the instruction executed next when no jump is taken.
	// JMP and RETN have none.
	Follower InstructionID
	// Branches are the jump destinations. For JZ/JNZ the order is
	// (true, false); JMP, JSR and STORESTATE have exactly one.
	Branches     []InstructionID
	Predecessors []InstructionID

	Block BlockID

	// Filled by stack analysis. Stack is the simulated stack right before
	// the instruction runs, bottom first.
	Stack  []VariableID
	Reads  []VariableID
	Writes []VariableID
	Pushes []VariableID
}

// Mnemonic returns the opcode name followed by the operand-type suffix,
// e.g. "CONSTI" or "ADDII".
func (in *Instruction) Mnemonic() string {
	return in.Opcode.String() + in.Type.Suffix()
}

// StoreStateTarget returns the address of the code captured by a
// STORESTATE instruction. The type byte holds its distance from the
// instruction.
func (in *Instruction) StoreStateTarget() uint32 {
	return in.Address + uint32(in.Type)
}

// JumpTarget returns the absolute destination of a relative jump.
func (in *Instruction) JumpTarget() uint32 {
	return uint32(int64(in.Address) + int64(in.Args[0]))
}

// IsBlockEnd reports whether no instruction after in can belong to the
// same block.
func (in *Instruction) IsBlockEnd() bool {
	switch in.Opcode {
	case OpJMP, OpJZ, OpJNZ, OpJSR, OpSTORESTATE, OpRETN:
		return true
	}
	return in.Follower == NoInstruction
}

// ArgString formats the direct arguments for a listing.
func (in *Instruction) ArgString() string {
	if in.Opcode == OpCONST {
		return in.Constant.String()
	}
	parts := make([]string, 0, in.ArgCount)
	for i := 0; i < in.ArgCount; i++ {
		parts = append(parts, strconv.Itoa(int(in.Args[i])))
	}
	return strings.Join(parts, " ")
}

func (in *Instruction) String() string {
	args := in.ArgString()
	if args == "" {
		return fmt.Sprintf("%08X %s", in.Address, in.Mnemonic())
	}
	return fmt.Sprintf("%08X %s %s", in.Address, in.Mnemonic(), args)
}
