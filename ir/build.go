package ir

// EmitConstant emits a typed constant. A zero value reuses the
// entry-zero node rather than allocating a new one, for any caller —
// including one about to bind it to r0 (spec.md §4.7).
func (c *Context) EmitConstant(typ ValueType, value uint64) (*Value, error) {
	if value == 0 {
		return c.Node(c.entryZero), nil
	}
	v, err := c.alloc(KindSetConstant)
	if err != nil {
		return nil, err
	}
	v.Type = typ
	v.Const = value
	return v, nil
}

// LoadGuestReg returns the current SSA value bound to guest register
// r, emitting a fresh LOAD_GUEST_REG only if r has no binding yet
// (value-numbering on register reads, spec.md §4.7).
func (c *Context) LoadGuestReg(r uint8) (*Value, error) {
	if existing := c.guestGPRToValue[r]; existing != noValue {
		return c.Node(existing), nil
	}
	v, err := c.alloc(KindLoadGuestReg)
	if err != nil {
		return nil, err
	}
	v.GuestReg = r
	c.guestGPRToValue[r] = v.Index
	return v, nil
}

// emitFlushGuestReg is called only by the optimizer's flush-insertion
// pass (C8), never directly by block translation.
func (c *Context) emitFlushGuestReg(r uint8, value int) (*Value, error) {
	v, err := c.alloc(KindFlushGuestReg)
	if err != nil {
		return nil, err
	}
	v.GuestReg = r
	v.A = value
	return v, nil
}

func (c *Context) binary(kind Kind, typ ValueType, a, b int) (*Value, error) {
	v, err := c.alloc(kind)
	if err != nil {
		return nil, err
	}
	v.Type = typ
	v.A, v.B = a, b
	return v, nil
}

func (c *Context) EmitOr(typ ValueType, a, b int) (*Value, error)  { return c.binary(KindOr, typ, a, b) }
func (c *Context) EmitAnd(typ ValueType, a, b int) (*Value, error) { return c.binary(KindAnd, typ, a, b) }
func (c *Context) EmitXor(typ ValueType, a, b int) (*Value, error) { return c.binary(KindXor, typ, a, b) }
func (c *Context) EmitAdd(typ ValueType, a, b int) (*Value, error) { return c.binary(KindAdd, typ, a, b) }
func (c *Context) EmitSub(typ ValueType, a, b int) (*Value, error) { return c.binary(KindSub, typ, a, b) }
func (c *Context) EmitMultiply(typ ValueType, a, b int) (*Value, error) {
	return c.binary(KindMultiply, typ, a, b)
}
func (c *Context) EmitDivide(typ ValueType, a, b int) (*Value, error) {
	return c.binary(KindDivide, typ, a, b)
}

// EmitNot emits a one-operand bitwise complement.
func (c *Context) EmitNot(typ ValueType, a int) (*Value, error) {
	v, err := c.alloc(KindNot)
	if err != nil {
		return nil, err
	}
	v.Type = typ
	v.A = a
	return v, nil
}

// EmitShift emits a shift of the given direction and type.
func (c *Context) EmitShift(typ ValueType, dir ShiftDir, value, amount int) (*Value, error) {
	v, err := c.alloc(KindShift)
	if err != nil {
		return nil, err
	}
	v.Type = typ
	v.ShiftDir = dir
	v.A, v.B = value, amount
	return v, nil
}

// EmitStore emits a typed memory store: address, value.
func (c *Context) EmitStore(typ ValueType, address, value int) (*Value, error) {
	v, err := c.alloc(KindStore)
	if err != nil {
		return nil, err
	}
	v.Type = typ
	v.A, v.B = address, value
	return v, nil
}

// EmitLoad emits a typed memory load from address.
func (c *Context) EmitLoad(typ ValueType, address int) (*Value, error) {
	v, err := c.alloc(KindLoad)
	if err != nil {
		return nil, err
	}
	v.Type = typ
	v.A = address
	return v, nil
}

// EmitGetPtr/EmitSetPtr move values directly to/from a host address
// (used for CP0/CP1 control-register access and other host-struct
// fields that aren't guest RAM).
func (c *Context) EmitGetPtr(typ ValueType, addr uintptr) (*Value, error) {
	v, err := c.alloc(KindGetPtr)
	if err != nil {
		return nil, err
	}
	v.Type = typ
	v.HostAddr = addr
	return v, nil
}

func (c *Context) EmitSetPtr(typ ValueType, addr uintptr, value int) (*Value, error) {
	v, err := c.alloc(KindSetPtr)
	if err != nil {
		return nil, err
	}
	v.Type = typ
	v.HostAddr = addr
	v.A = value
	return v, nil
}

// EmitMaskAndCast truncates/sign- or zero-extends value to typ.
func (c *Context) EmitMaskAndCast(typ ValueType, value int) (*Value, error) {
	v, err := c.alloc(KindMaskAndCast)
	if err != nil {
		return nil, err
	}
	v.Type = typ
	v.A = value
	return v, nil
}

// EmitCheckCondition evaluates pred(a,b) to 0/1.
func (c *Context) EmitCheckCondition(pred Predicate, a, b int) (*Value, error) {
	v, err := c.alloc(KindCheckCondition)
	if err != nil {
		return nil, err
	}
	v.Predicate = pred
	v.A, v.B = a, b
	return v, nil
}

// EmitTLBLookup emits a call into the virtual-memory resolver for
// vaddr, producing the resolved physical address (or triggering the
// emitted exception tail, the emitter's concern, not this package's).
func (c *Context) EmitTLBLookup(vaddr int) (*Value, error) {
	v, err := c.alloc(KindTLBLookup)
	if err != nil {
		return nil, err
	}
	v.A = vaddr
	return v, nil
}

// snapshotGuestRegs captures the current guest-GPR map, for a
// conditional exit's flush list.
func (c *Context) snapshotGuestRegs() []GuestBinding {
	var bindings []GuestBinding
	for r := uint8(0); r < 32; r++ {
		if v := c.guestGPRToValue[r]; v != noValue {
			bindings = append(bindings, GuestBinding{Reg: r, Value: v})
		}
	}
	return bindings
}

// EmitSetBlockExitPC terminates the block unconditionally at pc.
func (c *Context) EmitSetBlockExitPC(pc uint32) (*Value, error) {
	v, err := c.alloc(KindSetBlockExitPC)
	if err != nil {
		return nil, err
	}
	v.ExitPC = pc
	v.FlushList = c.snapshotGuestRegs()
	c.terminated = true
	return v, nil
}

// EmitSetCondBlockExitPC terminates the block at one of two candidate
// PCs depending on cond.
func (c *Context) EmitSetCondBlockExitPC(cond int, takenPC, notTakenPC uint32) (*Value, error) {
	v, err := c.alloc(KindSetCondBlockExitPC)
	if err != nil {
		return nil, err
	}
	v.A = cond
	v.ExitPC = takenPC
	v.ExitPCAlt = notTakenPC
	v.FlushList = c.snapshotGuestRegs()
	c.terminated = true
	return v, nil
}

// EmitCondBlockExit emits an early-out guarded by cond, without
// ending the block's normal control flow (used for trap instructions
// and exceptional early returns mid-block).
func (c *Context) EmitCondBlockExit(cond int) (*Value, error) {
	v, err := c.alloc(KindCondBlockExit)
	if err != nil {
		return nil, err
	}
	v.A = cond
	v.FlushList = c.snapshotGuestRegs()
	return v, nil
}

// EmitFaultBlockExit emits a COND_BLOCK_EXIT that raises a guest
// exception with the given cause.exception_code when cond is nonzero,
// instead of the plain early-out the base kind performs. Used for the
// overflow-trapping ADD/SUB/DADD/DSUB forms (spec.md §8's "Integer
// overflow" edge case).
func (c *Context) EmitFaultBlockExit(cond int, excCode uint8) (*Value, error) {
	v, err := c.alloc(KindCondBlockExit)
	if err != nil {
		return nil, err
	}
	v.A = cond
	v.Fault = excCode
	v.FlushList = c.snapshotGuestRegs()
	return v, nil
}

// EmitERET terminates the block with an exception return (pc <- epc,
// status.exl cleared by the emitter).
func (c *Context) EmitERET() (*Value, error) {
	v, err := c.alloc(KindERET)
	if err != nil {
		return nil, err
	}
	v.FlushList = c.snapshotGuestRegs()
	c.terminated = true
	return v, nil
}
