// Package nwscripttest assembles small NCS programs for tests.
//
// Jump targets are written as labels and resolved when Bytes is called:
//
//	a := nwscripttest.New()
//	a.JSR("main").RETN()
//	a.Label("main").RETN()
//	data := a.Bytes()
package nwscripttest

import (
	"fmt"

	"github.com/yoremi/nwscript-go/pkg/binarray"
)

// Opcode and type bytes used by the helpers.
const (
	OpCPDOWNSP    = 0x01
	OpRSADD       = 0x02
	OpCPTOPSP     = 0x03
	OpCONST       = 0x04
	OpACTION      = 0x05
	OpLOGAND      = 0x06
	OpLOGOR       = 0x07
	OpEQ          = 0x0B
	OpNEQ         = 0x0C
	OpGEQ         = 0x0D
	OpGT          = 0x0E
	OpLT          = 0x0F
	OpLEQ         = 0x10
	OpADD         = 0x14
	OpSUB         = 0x15
	OpMUL         = 0x16
	OpNEG         = 0x19
	OpMOVSP       = 0x1B
	OpJMP         = 0x1D
	OpJSR         = 0x1E
	OpJZ          = 0x1F
	OpRETN        = 0x20
	OpDESTRUCT    = 0x21
	OpNOT         = 0x22
	OpDECSP       = 0x23
	OpINCSP       = 0x24
	OpJNZ         = 0x25
	OpCPDOWNBP    = 0x26
	OpCPTOPBP     = 0x27
	OpSAVEBP      = 0x2A
	OpRESTOREBP   = 0x2B
	OpSTORESTATE  = 0x2C
	OpNOP         = 0x2D
	OpSCRIPTSIZE  = 0x42
	TypeNone      = 0x00
	TypeDirect    = 0x01
	TypeInt       = 0x03
	TypeFloat     = 0x04
	TypeString    = 0x05
	TypeObject    = 0x06
	TypeIntInt    = 0x20
	TypeFloatFlt  = 0x21
	TypeStrStr    = 0x23
	TypeIntFloat  = 0x25
	TypeHeaderLen = 13
)

type fixup struct {
	at     int // Offset of the operand in code
	from   int // Code offset of the instruction
	label  string
	offset bool // Write target-from instead of a type byte
}

// Assembler builds one program.
type Assembler struct {
	code   []byte
	labels map[string]int
	fixups []fixup
}

// New returns an empty assembler.
func New() *Assembler {
	return &Assembler{labels: map[string]int{}}
}

// Addr returns the file address the next instruction will get.
func (a *Assembler) Addr() uint32 {
	return uint32(len(a.code) + TypeHeaderLen)
}

// Label names the address of the next instruction.
func (a *Assembler) Label(name string) *Assembler {
	a.labels[name] = len(a.code)
	return a
}

// LabelAddr returns the file address of a defined label.
func (a *Assembler) LabelAddr(name string) uint32 {
	off, ok := a.labels[name]
	if !ok {
		panic(fmt.Sprintf("nwscripttest: undefined label %q", name))
	}
	return uint32(off + TypeHeaderLen)
}

func (a *Assembler) op(op, typ byte) {
	a.code = append(a.code, op, typ)
}

func (a *Assembler) u8(v uint8) { a.code = append(a.code, v) }

// grow appends n zero bytes and returns a buffer over the code and the
// offset of the new bytes.
func (a *Assembler) grow(n int) (*binarray.Buffer, int) {
	at := len(a.code)
	a.code = append(a.code, make([]byte, n)...)
	return binarray.FromBytes(a.code), at
}

func (a *Assembler) u16(v uint16) {
	b, at := a.grow(2)
	b.PutU16(at, v)
}

func (a *Assembler) u32(v uint32) {
	b, at := a.grow(4)
	b.PutU32(at, v)
}

// Raw appends arbitrary bytes.
func (a *Assembler) Raw(b ...byte) *Assembler {
	a.code = append(a.code, b...)
	return a
}

// Op appends an instruction without arguments.
func (a *Assembler) Op(op, typ byte) *Assembler {
	a.op(op, typ)
	return a
}

func (a *Assembler) jump(op byte, label string) *Assembler {
	from := len(a.code)
	a.op(op, TypeNone)
	a.fixups = append(a.fixups, fixup{at: len(a.code), from: from, label: label, offset: true})
	a.u32(0)
	return a
}

func (a *Assembler) JMP(label string) *Assembler { return a.jump(OpJMP, label) }
func (a *Assembler) JSR(label string) *Assembler { return a.jump(OpJSR, label) }
func (a *Assembler) JZ(label string) *Assembler  { return a.jump(OpJZ, label) }
func (a *Assembler) JNZ(label string) *Assembler { return a.jump(OpJNZ, label) }

func (a *Assembler) RETN() *Assembler      { return a.Op(OpRETN, TypeNone) }
func (a *Assembler) NOP() *Assembler       { return a.Op(OpNOP, TypeNone) }
func (a *Assembler) SAVEBP() *Assembler    { return a.Op(OpSAVEBP, TypeNone) }
func (a *Assembler) RESTOREBP() *Assembler { return a.Op(OpRESTOREBP, TypeNone) }

// RSADD reserves a slot of the given type.
func (a *Assembler) RSADD(typ byte) *Assembler { return a.Op(OpRSADD, typ) }

// ConstI pushes an integer literal.
func (a *Assembler) ConstI(v int32) *Assembler {
	a.op(OpCONST, TypeInt)
	a.u32(uint32(v))
	return a
}

// ConstF pushes a float literal.
func (a *Assembler) ConstF(v float32) *Assembler {
	a.op(OpCONST, TypeFloat)
	b, at := a.grow(4)
	b.PutF32(at, v)
	return a
}

// ConstS pushes a string literal.
func (a *Assembler) ConstS(v string) *Assembler {
	a.op(OpCONST, TypeString)
	a.u16(uint16(len(v)))
	a.code = append(a.code, v...)
	return a
}

// ConstO pushes an object literal.
func (a *Assembler) ConstO(v uint32) *Assembler {
	a.op(OpCONST, TypeObject)
	a.u32(v)
	return a
}

func (a *Assembler) offsetSize(op byte, offset int32, size int16) *Assembler {
	a.op(op, TypeDirect)
	a.u32(uint32(offset))
	a.u16(uint16(size))
	return a
}

func (a *Assembler) CPDOWNSP(offset int32, size int16) *Assembler {
	return a.offsetSize(OpCPDOWNSP, offset, size)
}

func (a *Assembler) CPTOPSP(offset int32, size int16) *Assembler {
	return a.offsetSize(OpCPTOPSP, offset, size)
}

func (a *Assembler) CPDOWNBP(offset int32, size int16) *Assembler {
	return a.offsetSize(OpCPDOWNBP, offset, size)
}

func (a *Assembler) CPTOPBP(offset int32, size int16) *Assembler {
	return a.offsetSize(OpCPTOPBP, offset, size)
}

func (a *Assembler) single(op byte, v int32) *Assembler {
	a.op(op, TypeNone)
	a.u32(uint32(v))
	return a
}

func (a *Assembler) MOVSP(offset int32) *Assembler { return a.single(OpMOVSP, offset) }

func (a *Assembler) INCSP(offset int32) *Assembler {
	a.op(OpINCSP, TypeInt)
	a.u32(uint32(offset))
	return a
}

func (a *Assembler) DECSP(offset int32) *Assembler {
	a.op(OpDECSP, TypeInt)
	a.u32(uint32(offset))
	return a
}

// DESTRUCT drops size bytes from the top, keeping keepSize bytes at
// keepOffset.
func (a *Assembler) DESTRUCT(size, keepOffset, keepSize int16) *Assembler {
	a.op(OpDESTRUCT, TypeDirect)
	a.u16(uint16(size))
	a.u16(uint16(keepOffset))
	a.u16(uint16(keepSize))
	return a
}

// Action calls engine function routine with argc arguments.
func (a *Assembler) Action(routine uint16, argc uint8) *Assembler {
	a.op(OpACTION, TypeNone)
	a.u16(routine)
	a.u8(argc)
	return a
}

// StoreState captures the code at label as deferred code. The label must
// lie within 255 bytes after the instruction.
func (a *Assembler) StoreState(label string, bpSize, spSize uint32) *Assembler {
	from := len(a.code)
	a.code = append(a.code, OpSTORESTATE, 0)
	a.fixups = append(a.fixups, fixup{at: from + 1, from: from, label: label})
	a.u32(bpSize)
	a.u32(spSize)
	return a
}

// Bytes resolves labels and returns the complete file.
func (a *Assembler) Bytes() []byte {
	out := binarray.New(TypeHeaderLen + len(a.code))
	out.Write(0, "NCS V1.0")
	out.PutU8(8, OpSCRIPTSIZE)
	out.PutU32(9, uint32(out.Len()))
	code := out.Sub(TypeHeaderLen, len(a.code))
	copy(code.Data, a.code)

	for _, f := range a.fixups {
		target, ok := a.labels[f.label]
		if !ok {
			panic(fmt.Sprintf("nwscripttest: undefined label %q", f.label))
		}
		delta := target - f.from
		if f.offset {
			code.PutU32(f.at, uint32(int32(delta)))
			continue
		}
		if delta < 0 || delta > 0xFF {
			panic(fmt.Sprintf("nwscripttest: label %q out of STORESTATE range", f.label))
		}
		code.PutU8(f.at, byte(delta))
	}
	return out.Data
}
