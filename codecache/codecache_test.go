package codecache

import (
	"testing"

	"github.com/kdyn/n64dynarec/blockcache"
)

func TestReserveAdvancesOffset(t *testing.T) {
	var blocks blockcache.Cache
	c, err := New(4096, &blocks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	buf, err := c.Reserve(16)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(buf) != 16 {
		t.Fatalf("len(buf) = %d, want 16", len(buf))
	}
	if c.Offset() != 16 {
		t.Fatalf("Offset() = %d, want 16", c.Offset())
	}
}

func TestReserveFullReturnsErrFull(t *testing.T) {
	var blocks blockcache.Cache
	c, err := New(64, &blocks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if _, err := c.Reserve(64); err != nil {
		t.Fatalf("Reserve(64): %v", err)
	}
	if _, err := c.Reserve(1); err != ErrFull {
		t.Fatalf("Reserve past capacity = %v, want ErrFull", err)
	}
}

func TestFlushResetsOffsetAndInvalidatesBlocks(t *testing.T) {
	blocks := &blockcache.Cache{}
	c, err := New(4096, blocks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	c.Reserve(32)
	blocks.Install(&blockcache.Block{PAddr: 0x1000})

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if c.Offset() != 0 {
		t.Fatalf("Offset() after Flush = %d, want 0", c.Offset())
	}
	if blocks.Lookup(0x1000) != nil {
		t.Fatalf("block survived Flush")
	}
}

func TestBeginEndEmitRoundTrip(t *testing.T) {
	var blocks blockcache.Cache
	c, err := New(4096, &blocks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if err := c.EndEmit(); err != nil {
		t.Fatalf("EndEmit: %v", err)
	}
	if _, err := c.Reserve(4); err == nil {
		t.Fatalf("Reserve should fail while executable")
	}
	if err := c.BeginEmit(); err != nil {
		t.Fatalf("BeginEmit: %v", err)
	}
	if _, err := c.Reserve(4); err != nil {
		t.Fatalf("Reserve after BeginEmit: %v", err)
	}
}
