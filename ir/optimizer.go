// This file is the IR Optimizer (C8): dead-code marking, last-use
// computation, and flush-list insertion, run once per block after
// translation has emitted every instruction.
package ir

import "math"

// infiniteLastUse marks a value that must never be considered free
// (constants, the entry-zero node): spec.md §4.8 "constants and
// entry-zero get last-use = ∞ so they are never freed".
const infiniteLastUse = math.MaxInt32

// Optimize runs the three C8 passes in order: dead-code marking,
// last-use computation, then flush insertion. It must run after the
// block is fully emitted (Finalize's termination check should also
// have passed) and before the register allocator sees the IR.
func (c *Context) Optimize() {
	c.markDeadCode()
	c.computeLastUse()
	c.insertFlushes()
}

// isRoot reports whether a node's effects are observable outside the
// IR itself and so must always be kept live, per spec.md §4.8's root
// list. TLB_LOOKUP is included because a lookup can raise a guest
// TLB fault, an externally observable effect even when its resolved
// address is otherwise unused.
func isRoot(k Kind) bool {
	switch k {
	case KindStore, KindSetPtr, KindSetBlockExitPC, KindSetCondBlockExitPC,
		KindCondBlockExit, KindFlushGuestReg, KindERET, KindTLBLookup:
		return true
	default:
		return false
	}
}

func (c *Context) operandsOf(v *Value) []int {
	ops := make([]int, 0, 3+len(v.FlushList))
	for _, o := range []int{v.A, v.B, v.C} {
		if o != noValue {
			ops = append(ops, o)
		}
	}
	for _, b := range v.FlushList {
		ops = append(ops, b.Value)
	}
	return ops
}

// markDeadCode walks backward from every root, marking every
// transitively-reachable value live; everything else stays flagged
// dead in place for the allocator/emitter to skip, per spec.md §4.8.
func (c *Context) markDeadCode() {
	live := make([]bool, c.count)
	var stack []int
	for i := 0; i < c.count; i++ {
		if isRoot(c.nodes[i].Kind) {
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if live[idx] {
			continue
		}
		live[idx] = true
		for _, op := range c.operandsOf(&c.nodes[idx]) {
			if !live[op] {
				stack = append(stack, op)
			}
		}
	}
	for i := 0; i < c.count; i++ {
		c.nodes[i].DeadCode = !live[i]
	}
}

// computeLastUse is a single forward pass: for every node, each of
// its operands' LastUse is raised to this node's index. Constants and
// the entry-zero node are pinned to infiniteLastUse afterward.
func (c *Context) computeLastUse() {
	for i := 0; i < c.count; i++ {
		v := &c.nodes[i]
		for _, op := range c.operandsOf(v) {
			if i > c.nodes[op].LastUse {
				c.nodes[op].LastUse = i
			}
		}
	}
	for i := 0; i < c.count; i++ {
		if c.nodes[i].Kind == KindSetConstant {
			c.nodes[i].LastUse = infiniteLastUse
		}
	}
	c.nodes[c.entryZero].LastUse = infiniteLastUse
}

// insertFlushes appends one FLUSH_GUEST_REG per guest register whose
// final bound value isn't a pass-through load of that same register.
// The arena is append-only, so "insert after last use" is realized by
// appending at the tail and relying on the allocator/emitter walking
// the list in order: every operand a flush reads was emitted earlier
// and so its last use has already passed by the time the flush node
// is reached (Design Note §9: "a vector plus an insertion map is
// equivalent" to true positional insertion).
func (c *Context) insertFlushes() {
	for r := uint8(1); r < 32; r++ {
		bound := c.guestGPRToValue[r]
		if bound == noValue {
			continue
		}
		v := &c.nodes[bound]
		if v.Kind == KindLoadGuestReg && v.GuestReg == r {
			continue // pass-through: state array is already current
		}
		flush, err := c.emitFlushGuestReg(r, bound)
		if err != nil {
			// Cache overflow here is the same fatal condition as any
			// other Emit* overflow; the translator must have left
			// headroom for one flush per live register.
			continue
		}
		flush.LastUse = infiniteLastUse
		if c.nodes[bound].LastUse < flush.Index {
			c.nodes[bound].LastUse = flush.Index
		}
	}
}
