package main

import (
	"encoding/binary"
	"testing"

	"github.com/kdyn/n64dynarec/state"
)

func TestPutSnapshotLayout(t *testing.T) {
	cpu := &state.CPU{}
	cpu.Reset()
	cpu.GPRWrite(1, 0x0102030405060708)
	cpu.PC = 0xA0001000
	cpu.MultHi = 0x1111111111111111
	cpu.MultLo = 0x2222222222222222

	buf := make([]byte, snapshotSize)
	putSnapshot(buf, cpu)

	if got := binary.BigEndian.Uint64(buf[1*8:]); got != 0x0102030405060708 {
		t.Fatalf("gpr[1] in snapshot = %#x, want 0x0102030405060708", got)
	}
	pcOff := 32 * 8
	if got := binary.BigEndian.Uint32(buf[pcOff:]); got != 0xA0001000 {
		t.Fatalf("pc in snapshot = %#x, want 0xA0001000", got)
	}
	hiOff := pcOff + 4
	if got := binary.BigEndian.Uint64(buf[hiOff:]); got != 0x1111111111111111 {
		t.Fatalf("hi in snapshot = %#x, want 0x1111111111111111", got)
	}
	loOff := hiOff + 8
	if got := binary.BigEndian.Uint64(buf[loOff:]); got != 0x2222222222222222 {
		t.Fatalf("lo in snapshot = %#x, want 0x2222222222222222", got)
	}
}

func TestPutSnapshotDeterministicForEqualState(t *testing.T) {
	a := &state.CPU{}
	a.Reset()
	a.GPRWrite(4, 0xDEADBEEF)
	a.PC = 0x1234

	b := &state.CPU{}
	b.Reset()
	b.GPRWrite(4, 0xDEADBEEF)
	b.PC = 0x1234

	bufA := make([]byte, snapshotSize)
	bufB := make([]byte, snapshotSize)
	putSnapshot(bufA, a)
	putSnapshot(bufB, b)

	for i := range bufA {
		if bufA[i] != bufB[i] {
			t.Fatalf("snapshots of equal CPU state diverged at byte %d: %#x vs %#x", i, bufA[i], bufB[i])
		}
	}
}

func TestNewGuestLoadsImageAtZero(t *testing.T) {
	image := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	cpu, ram := newGuest(image, 0x1000)

	if cpu.PC != kseg1Base {
		t.Fatalf("pc = %#x, want kseg1 entry %#x", cpu.PC, kseg1Base)
	}
	for i, want := range image {
		if got := ram.ReadByte(uint32(i)); got != want {
			t.Fatalf("ram[%d] = %#x, want %#x", i, got, want)
		}
	}
}
