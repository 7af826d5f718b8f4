package binarray

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestIntReadWrite(t *testing.T) {
	buf := New(16)

	// Test 32-bit BE
	buf.PutU32(0, 0x12345678)
	if got := buf.GetU32(0); got != 0x12345678 {
		t.Errorf("GetU32 = %08x, want %08x", got, 0x12345678)
	}
	// Verify BE byte order
	if buf.Data[0] != 0x12 || buf.Data[1] != 0x34 || buf.Data[2] != 0x56 || buf.Data[3] != 0x78 {
		t.Errorf("Not big-endian: %02x %02x %02x %02x", buf.Data[0], buf.Data[1], buf.Data[2], buf.Data[3])
	}

	// Test 16-bit BE
	buf.PutU16(8, 0xABCD)
	if got := buf.GetU16(8); got != 0xABCD {
		t.Errorf("GetU16 = %04x, want %04x", got, 0xABCD)
	}
	if got := buf.GetI16(8); got != -0x5433 {
		t.Errorf("GetI16 = %d, want %d", got, -0x5433)
	}

	// Test negative int32
	buf.PutU32(4, 0xFFFFFFFF)
	if got := buf.GetI32(4); got != -1 {
		t.Errorf("GetI32(-1) = %d, want -1", got)
	}
}

func TestFloatReadWrite(t *testing.T) {
	buf := New(4)
	buf.PutF32(0, 1.5)
	if buf.Data[0] != 0x3f || buf.Data[1] != 0xc0 {
		t.Errorf("PutF32(1.5) = % x", buf.Data)
	}
	if got := buf.GetF32(0); got != 1.5 {
		t.Errorf("GetF32 = %v, want 1.5", got)
	}
}

func TestStringReadWrite(t *testing.T) {
	buf := New(16)

	buf.Write(0, "NCS V1.0")
	if got := buf.Read(0, 4); got != "NCS " {
		t.Errorf("Read = %q, want %q", got, "NCS ")
	}
	if got := buf.Read(4, 4); got != "V1.0" {
		t.Errorf("Read = %q, want %q", got, "V1.0")
	}
}

func TestHas(t *testing.T) {
	buf := New(8)
	tests := []struct {
		idx, n int
		want   bool
	}{
		{0, 8, true},
		{4, 4, true},
		{5, 4, false},
		{-1, 1, false},
		{8, 0, true},
	}
	for _, tt := range tests {
		if got := buf.Has(tt.idx, tt.n); got != tt.want {
			t.Errorf("Has(%d, %d) = %v, want %v", tt.idx, tt.n, got, tt.want)
		}
	}
}

func TestSub(t *testing.T) {
	buf := New(8)
	for i := 0; i < 8; i++ {
		buf.Data[i] = byte(i)
	}

	// Sub shares memory
	sub := buf.Sub(2, 4)
	sub.Data[0] = 0xFF
	if buf.Data[2] != 0xFF {
		t.Error("Sub should share memory")
	}
	if sub.Len() != 4 || sub.Has(2, 4) {
		t.Errorf("Sub bounds: len %d", sub.Len())
	}
	sub.PutU8(3, 0xEE)
	if buf.GetU8(5) != 0xEE {
		t.Error("PutU8 through Sub should reach the parent")
	}
}

func TestReadFileDigest(t *testing.T) {
	name := filepath.Join(t.TempDir(), "x.ncs")
	if err := os.WriteFile(name, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	buf, err := ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	// md5("abc")
	want := "900150983cd24fb0d6963f7d28e17f72"
	if got := fmt.Sprintf("%x", buf.Digest()); got != want {
		t.Errorf("Digest = %s, want %s", got, want)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("ReadFile of a missing file should fail")
	}
}
