package ir

import "testing"

func TestResetSeedsEntryZero(t *testing.T) {
	var c Context
	c.Reset()
	if c.GuestReg(0) != c.EntryZero() {
		t.Fatalf("gpr[0] not bound to entry-zero node")
	}
	if c.Node(c.EntryZero()).Kind != KindSetConstant {
		t.Fatalf("entry-zero node is not a constant")
	}
}

func TestEmitConstantZeroReusesEntryZero(t *testing.T) {
	var c Context
	c.Reset()
	before := c.Len()
	v, err := c.EmitConstant(TypeU32, 0)
	if err != nil {
		t.Fatalf("EmitConstant: %v", err)
	}
	if v.Index != c.EntryZero() {
		t.Fatalf("zero constant should reuse entry-zero node")
	}
	if c.Len() != before {
		t.Fatalf("zero constant should not allocate a new node")
	}
}

func TestLoadGuestRegValueNumbering(t *testing.T) {
	var c Context
	c.Reset()
	v1, err := c.LoadGuestReg(5)
	if err != nil {
		t.Fatalf("LoadGuestReg: %v", err)
	}
	v2, err := c.LoadGuestReg(5)
	if err != nil {
		t.Fatalf("LoadGuestReg: %v", err)
	}
	if v1.Index != v2.Index {
		t.Fatalf("second load of r5 should return the same value, got %d and %d", v1.Index, v2.Index)
	}
}

func TestBindGuestRegZeroIsNoOp(t *testing.T) {
	var c Context
	c.Reset()
	c1, _ := c.EmitConstant(TypeU32, 0xBAD)
	c.BindGuestReg(0, c1.Index)
	if c.GuestReg(0) != c.EntryZero() {
		t.Fatalf("binding r0 should be a no-op")
	}
}

func TestFinalizeFailsWithoutExit(t *testing.T) {
	var c Context
	c.Reset()
	c.EmitConstant(TypeU32, 1)
	if err := c.Finalize(); err != ErrUnterminatedBlock {
		t.Fatalf("Finalize() = %v, want ErrUnterminatedBlock", err)
	}
}

func TestFinalizeSucceedsAfterExit(t *testing.T) {
	var c Context
	c.Reset()
	if _, err := c.EmitSetBlockExitPC(0x80001000); err != nil {
		t.Fatalf("EmitSetBlockExitPC: %v", err)
	}
	if err := c.Finalize(); err != nil {
		t.Fatalf("Finalize() = %v, want nil", err)
	}
}

func TestCacheOverflowReported(t *testing.T) {
	var c Context
	c.Reset()
	var lastErr error
	for i := 0; i < MaxNodes+10; i++ {
		_, err := c.EmitConstant(TypeU32, uint64(i+1)) // nonzero: always allocates
		if err != nil {
			lastErr = err
			break
		}
	}
	if lastErr != ErrCacheOverflow {
		t.Fatalf("expected ErrCacheOverflow, got %v", lastErr)
	}
}

func TestDeadCodeMarksUnreachableValues(t *testing.T) {
	var c Context
	c.Reset()
	dead, _ := c.EmitConstant(TypeU32, 0xDEAD) // never used by anything
	c.EmitSetBlockExitPC(0x1000)
	c.Optimize()
	if !c.Node(dead.Index).DeadCode {
		t.Fatalf("unused constant should be marked dead")
	}
}

func TestDeadCodeKeepsStoreOperandsLive(t *testing.T) {
	var c Context
	c.Reset()
	addr, _ := c.EmitConstant(TypeU32, 0x1000)
	val, _ := c.EmitConstant(TypeU32, 0x42)
	c.EmitStore(TypeU32, addr.Index, val.Index)
	c.EmitSetBlockExitPC(0x1004)
	c.Optimize()
	if c.Node(addr.Index).DeadCode || c.Node(val.Index).DeadCode {
		t.Fatalf("a STORE's operands must stay live")
	}
}

func TestLastUseInfiniteForConstants(t *testing.T) {
	var c Context
	c.Reset()
	k, _ := c.EmitConstant(TypeU32, 7)
	c.EmitAdd(TypeU32, k.Index, k.Index)
	c.EmitSetBlockExitPC(0x2000)
	c.Optimize()
	if c.Node(k.Index).LastUse != infiniteLastUse {
		t.Fatalf("constant LastUse = %d, want infinite", c.Node(k.Index).LastUse)
	}
	if c.Node(c.EntryZero()).LastUse != infiniteLastUse {
		t.Fatalf("entry-zero LastUse should be infinite")
	}
}

func TestFlushInsertedForModifiedRegister(t *testing.T) {
	var c Context
	c.Reset()
	k, _ := c.EmitConstant(TypeU32, 0x1234)
	c.BindGuestReg(1, k.Index)
	c.EmitSetBlockExitPC(0x3000)
	c.Optimize()

	found := false
	c.Each(func(v *Value) {
		if v.Kind == KindFlushGuestReg && v.GuestReg == 1 && v.A == k.Index {
			found = true
		}
	})
	if !found {
		t.Fatalf("expected a FLUSH_GUEST_REG(r1) after the constant bind")
	}
}

func TestFlushNotInsertedForPassThroughLoad(t *testing.T) {
	var c Context
	c.Reset()
	c.LoadGuestReg(2) // load but never modify
	c.EmitSetBlockExitPC(0x4000)
	c.Optimize()

	c.Each(func(v *Value) {
		if v.Kind == KindFlushGuestReg && v.GuestReg == 2 {
			t.Fatalf("pass-through load of r2 should not be flushed")
		}
	})
}
