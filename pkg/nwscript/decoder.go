package nwscript

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/go-restruct/restruct"
	"github.com/golang/glog"

	"github.com/yoremi/nwscript-go/pkg/binarray"
)

const (
	// Magic is the file signature of a compiled script.
	Magic = "NCS V1.0"
	// HeaderSize is the length of the signature plus the SCRIPTSIZE record.
	HeaderSize = 13
)

// fileHeader is the fixed prefix of an NCS file.
type fileHeader struct {
	Magic  [8]byte
	Opcode uint8
	Size   uint32
}

// Reader reads instructions sequentially from a buffer.
type Reader struct {
	buf *binarray.Buffer // Ends at the read limit
	pos int
}

// NewReader creates a bytecode reader over data[origin:limit].
func NewReader(data []byte, origin, limit int) *Reader {
	if limit > len(data) {
		limit = len(data)
	}
	return &Reader{buf: binarray.FromBytes(data).Sub(0, limit), pos: origin}
}

// Pos returns the current read position.
func (r *Reader) Pos() int { return r.pos }

// AtEnd returns true if the reader has reached the limit.
func (r *Reader) AtEnd() bool { return r.pos >= r.buf.Len() }

func (r *Reader) need(n int, what string) error {
	if !r.buf.Has(r.pos, n) {
		return fmt.Errorf("not enough data for %s at 0x%x", what, r.pos)
	}
	return nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.need(1, "uint8"); err != nil {
		return 0, err
	}
	v := r.buf.GetU8(r.pos)
	r.pos++
	return v, nil
}

// ReadUint16 reads a big-endian 16-bit unsigned integer.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2, "uint16"); err != nil {
		return 0, err
	}
	v := r.buf.GetU16(r.pos)
	r.pos += 2
	return v, nil
}

// ReadInt16 reads a big-endian 16-bit integer.
func (r *Reader) ReadInt16() (int16, error) {
	if err := r.need(2, "int16"); err != nil {
		return 0, err
	}
	v := r.buf.GetI16(r.pos)
	r.pos += 2
	return v, nil
}

// ReadUint32 reads a big-endian 32-bit unsigned integer.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4, "uint32"); err != nil {
		return 0, err
	}
	v := r.buf.GetU32(r.pos)
	r.pos += 4
	return v, nil
}

// ReadInt32 reads a big-endian 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	if err := r.need(4, "int32"); err != nil {
		return 0, err
	}
	v := r.buf.GetI32(r.pos)
	r.pos += 4
	return v, nil
}

// ReadFloat32 reads a big-endian IEEE 754 float.
func (r *Reader) ReadFloat32() (float32, error) {
	if err := r.need(4, "float"); err != nil {
		return 0, err
	}
	v := r.buf.GetF32(r.pos)
	r.pos += 4
	return v, nil
}

// ReadString reads a string prefixed by its 16-bit length.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n), "string"); err != nil {
		return "", err
	}
	s := r.buf.Read(r.pos, int(n))
	r.pos += int(n)
	return s, nil
}

// readHeader validates the file signature and returns the declared size.
func readHeader(data []byte) (uint32, error) {
	if len(data) < HeaderSize {
		return 0, decodeErrorf(0, "file too short for header (%d bytes)", len(data))
	}
	var h fileHeader
	if err := restruct.Unpack(data[:HeaderSize], binary.BigEndian, &h); err != nil {
		return 0, decodeErrorf(0, "cannot read header: %v", err)
	}
	if string(h.Magic[:]) != Magic {
		return 0, decodeErrorf(0, "not an NCS V1.0 file (magic %q)", string(h.Magic[:]))
	}
	if Opcode(h.Opcode) != OpSCRIPTSIZE {
		return 0, decodeErrorf(8, "expected SCRIPTSIZE, got opcode 0x%02X", h.Opcode)
	}
	return h.Size, nil
}

// decodeInstructions reads every instruction after the header, in address
// order.
func decodeInstructions(data []byte) ([]Instruction, error) {
	size, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	if int64(size) > int64(len(data)) {
		return nil, decodeErrorf(8, "truncated script: header declares %d bytes, have %d", size, len(data))
	}
	if int(size) < len(data) {
		glog.Warningf("script declares %d bytes, ignoring %d trailing bytes", size, len(data)-int(size))
	}

	r := NewReader(data, HeaderSize, int(size))
	var insts []Instruction
	for !r.AtEnd() {
		in, err := r.readInstruction()
		if err != nil {
			return nil, err
		}
		insts = append(insts, in)
	}
	glog.V(2).Infof("decoded %d instructions", len(insts))
	return insts, nil
}

func (r *Reader) readInstruction() (Instruction, error) {
	addr := uint32(r.pos)
	in := Instruction{
		Address:  addr,
		Follower: NoInstruction,
		Block:    NoBlock,
	}

	op, err := r.ReadUint8()
	if err != nil {
		return in, decodeErrorf(addr, "truncated instruction: %v", err)
	}
	typ, err := r.ReadUint8()
	if err != nil {
		return in, decodeErrorf(addr, "truncated instruction: %v", err)
	}
	in.Opcode, in.Type = Opcode(op), InstructionType(typ)
	if !in.Opcode.Valid() {
		return in, decodeErrorf(addr, "unknown opcode 0x%02X", op)
	}

	if err := r.readArgs(&in); err != nil {
		return in, decodeErrorf(addr, "%s: %v", in.Mnemonic(), err)
	}
	in.Size = r.pos - int(addr)
	return in, nil
}

func (r *Reader) arg(in *Instruction, t ArgType) error {
	var v int32
	switch t {
	case ArgUint8:
		b, err := r.ReadUint8()
		if err != nil {
			return err
		}
		v = int32(b)
	case ArgUint16:
		u, err := r.ReadUint16()
		if err != nil {
			return err
		}
		v = int32(u)
	case ArgSint16:
		s, err := r.ReadInt16()
		if err != nil {
			return err
		}
		v = int32(s)
	case ArgUint32:
		u, err := r.ReadUint32()
		if err != nil {
			return err
		}
		v = int32(u)
	case ArgSint32:
		s, err := r.ReadInt32()
		if err != nil {
			return err
		}
		v = s
	}
	in.Args[in.ArgCount] = v
	in.ArgTypes[in.ArgCount] = t
	in.ArgCount++
	return nil
}

func (r *Reader) args(in *Instruction, types ...ArgType) error {
	for _, t := range types {
		if err := r.arg(in, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) readArgs(in *Instruction) error {
	switch in.Opcode {
	case OpCPDOWNSP, OpCPTOPSP, OpCPDOWNBP, OpCPTOPBP,
		OpREADARRAY, OpWRITEARRAY, OpGETREF, OpGETREFARRAY:
		return r.args(in, ArgSint32, ArgSint16)

	case OpCONST:
		return r.readConstant(in)

	case OpACTION:
		return r.args(in, ArgUint16, ArgUint8)

	case OpEQ, OpNEQ:
		if in.Type == InstTypeStructStruct {
			return r.args(in, ArgUint16)
		}
		return nil

	case OpMOVSP, OpINCSP, OpDECSP, OpINCBP, OpDECBP,
		OpJMP, OpJSR, OpJZ, OpJNZ:
		return r.args(in, ArgSint32)

	case OpDESTRUCT:
		return r.args(in, ArgSint16, ArgSint16, ArgSint16)

	case OpSTORESTATE:
		return r.args(in, ArgUint32, ArgUint32)

	case OpSCRIPTSIZE:
		return r.args(in, ArgUint32)
	}
	return nil
}

func (r *Reader) readConstant(in *Instruction) error {
	c := &in.Constant
	switch in.Type {
	case InstTypeInt:
		v, err := r.ReadInt32()
		if err != nil {
			return err
		}
		c.Type, c.Int = TypeInt, v
	case InstTypeFloat:
		v, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		c.Type, c.Float = TypeFloat, v
	case InstTypeString, InstTypeResource:
		v, err := r.ReadString()
		if err != nil {
			return err
		}
		c.Type, c.Str = TypeString, v
		if in.Type == InstTypeResource {
			c.Type = TypeResource
		}
	case InstTypeObject:
		v, err := r.ReadUint32()
		if err != nil {
			return err
		}
		c.Type, c.Object = TypeObject, v
	default:
		return fmt.Errorf("unsupported constant type %d", in.Type)
	}
	return nil
}

// linkInstructions fills in followers, branches, predecessors and address
// types. insts must be in address order.
func linkInstructions(insts []Instruction) error {
	find := func(addr uint32) InstructionID {
		i := sort.Search(len(insts), func(i int) bool { return insts[i].Address >= addr })
		if i < len(insts) && insts[i].Address == addr {
			return InstructionID(i)
		}
		return NoInstruction
	}
	stamp := func(id InstructionID, t AddressType) {
		if insts[id].AddressType < t {
			insts[id].AddressType = t
		}
	}
	target := func(in *Instruction, addr uint32) (InstructionID, error) {
		id := find(addr)
		if id == NoInstruction {
			return NoInstruction, decodeErrorf(in.Address, "%s to %08X: no instruction at destination", in.Mnemonic(), addr)
		}
		return id, nil
	}

	for i := range insts {
		in := &insts[i]
		if in.Opcode != OpJMP && in.Opcode != OpRETN && i+1 < len(insts) {
			in.Follower = InstructionID(i + 1)
		}

		switch in.Opcode {
		case OpJMP, OpJSR:
			dest, err := target(in, in.JumpTarget())
			if err != nil {
				return err
			}
			in.Branches = []InstructionID{dest}
			if in.Opcode == OpJSR {
				stamp(dest, AddressSubRoutine)
			} else {
				stamp(dest, AddressJumpLabel)
			}

		case OpJZ, OpJNZ:
			dest, err := target(in, in.JumpTarget())
			if err != nil {
				return err
			}
			if in.Follower == NoInstruction {
				return decodeErrorf(in.Address, "%s at end of script", in.Mnemonic())
			}
			stamp(dest, AddressJumpLabel)
			if in.Opcode == OpJZ {
				in.Branches = []InstructionID{in.Follower, dest}
			} else {
				in.Branches = []InstructionID{dest, in.Follower}
			}
			stamp(in.Branches[1], AddressTail)

		case OpSTORESTATE:
			dest, err := target(in, in.StoreStateTarget())
			if err != nil {
				return err
			}
			in.Branches = []InstructionID{dest}
			stamp(dest, AddressStoreState)
		}
	}

	for i := range insts {
		in := &insts[i]
		if in.Follower != NoInstruction {
			f := &insts[in.Follower]
			f.Predecessors = append(f.Predecessors, InstructionID(i))
		}
		for _, b := range in.Branches {
			if b == in.Follower {
				continue
			}
			insts[b].Predecessors = append(insts[b].Predecessors, InstructionID(i))
		}
	}
	return nil
}
