// Package ir implements the per-block SSA intermediate representation
// (C7 IR Builder, C8 IR Optimizer): an arena of instruction nodes
// referenced by index (never by raw pointer, per the arena-ownership
// discipline original_source's global ir_context_t shows but this
// package makes an explicit value owned by the translator), a
// guest-register value-numbering map, and the dead-code/last-use/
// flush-insertion passes that run once a block is fully emitted.
package ir

import "errors"

// MaxNodes bounds one block's IR; decoder block-length limits
// (≈1024 guest instructions) are sized so real blocks stay well under
// it. Exceeding it is a decoder bug, not a recoverable condition.
const MaxNodes = 4096

// ErrCacheOverflow is returned by any Emit* call once the arena is
// full.
var ErrCacheOverflow = errors.New("ir: cache overflow (> 4096 nodes in one block)")

// ErrUnterminatedBlock is returned by Finalize when no exit
// instruction (SET_BLOCK_EXIT_PC, SET_COND_BLOCK_EXIT_PC, ERET) was
// ever emitted.
var ErrUnterminatedBlock = errors.New("ir: block has no exit instruction")

// Kind identifies the operation a Value node performs.
type Kind uint8

const (
	KindNOP Kind = iota
	KindSetConstant
	KindOr
	KindAnd
	KindNot
	KindXor
	KindAdd
	KindSub
	KindShift
	KindStore
	KindLoad
	KindGetPtr
	KindSetPtr
	KindMaskAndCast
	KindCheckCondition
	KindSetBlockExitPC
	KindSetCondBlockExitPC
	KindCondBlockExit
	KindTLBLookup
	KindLoadGuestReg
	KindFlushGuestReg
	KindMultiply
	KindDivide
	KindERET
)

// ValueType is the width/signedness a typed node operates on.
type ValueType uint8

const (
	TypeU8 ValueType = iota
	TypeS8
	TypeU16
	TypeS16
	TypeU32
	TypeS32
	TypeU64
	TypeS64
	TypeF32
	TypeF64
)

// ShiftDir selects SHIFT's direction.
type ShiftDir uint8

const (
	ShiftLeft ShiftDir = iota
	ShiftRight
)

// Predicate is CHECK_CONDITION's comparison.
type Predicate uint8

const (
	PredEQ Predicate = iota
	PredNE
	PredLTS
	PredLTU
	PredGTS
	PredGTU
	PredLES
	PredLEU
	PredGES
	PredGEU
)

// noValue marks an unused operand slot.
const noValue = -1

// Value is one arena-resident IR node. Operand fields A/B/C hold
// arena indices (noValue if unused); Next/Prev thread the emission
// order as an intrusive doubly-linked list of arena indices, per
// Design Note §9.
type Value struct {
	Kind Kind
	Type ValueType
	Index int // this node's own arena index

	A, B, C int // operand value indices

	Const uint64

	ShiftDir  ShiftDir
	Predicate Predicate
	GuestReg  uint8
	HostAddr  uintptr

	ExitPC    uint32 // SET_BLOCK_EXIT_PC target, or the taken-branch target for SET_COND_BLOCK_EXIT_PC
	ExitPCAlt uint32 // not-taken target for SET_COND_BLOCK_EXIT_PC

	// Fault is nonzero on a COND_BLOCK_EXIT that represents a guest
	// exception (ADD/SUB/DADD/DSUB overflow) rather than an ordinary
	// early-out: the value is the cause.exception_code to commit when
	// the condition fires. Zero means the plain early-out the base kind
	// already documents (spec.md §4.7's "trap instructions and
	// exceptional early returns"). This keeps COND_BLOCK_EXIT as the one
	// kind spec.md names for mid-block exits instead of adding a
	// dedicated overflow-trap kind the spec never lists.
	Fault uint8

	// FlushList snapshots, for a COND_BLOCK_EXIT or SET_COND_BLOCK_EXIT_PC
	// node, which guest register each entry corresponds to and which
	// value must be flushed before taking that exit.
	FlushList []GuestBinding

	Next, Prev int

	// Filled in by the optimizer (C8).
	DeadCode bool
	LastUse  int

	// Filled in by the allocator (C9).
	HostReg   int
	Spilled   bool
	SpillSlot int
}

// GuestBinding pairs a guest register with the IR value currently
// bound to it, used for flush-list snapshots on conditional exits.
type GuestBinding struct {
	Reg   uint8
	Value int
}

// Context is one block's IR: the node arena, the emission-order
// linked list, and the guest-GPR value-numbering map. It is reused
// across blocks; Reset must be called before translating a new one
// (spec.md §5 "ir_context_reset() must be called at the start of
// every translation").
type Context struct {
	nodes [MaxNodes]Value
	count int

	head, tail int

	guestGPRToValue [32]int
	entryZero       int

	terminated bool
}

// Reset clears the context and seeds entry 0: guest register 0 is
// bound to a constant-zero node that is never rebound, matching
// spec.md §4.7 ("Entry 0 is pre-seeded to a constant-zero IR node and
// never rebound").
func (c *Context) Reset() {
	c.count = 0
	c.head, c.tail = noValue, noValue
	c.terminated = false
	for i := range c.guestGPRToValue {
		c.guestGPRToValue[i] = noValue
	}
	zero, _ := c.alloc(KindSetConstant)
	zero.Type = TypeU64
	zero.Const = 0
	c.entryZero = zero.Index
	c.guestGPRToValue[0] = c.entryZero
}

// Len reports how many nodes are currently live in the arena.
func (c *Context) Len() int { return c.count }

// Node returns the value at arena index i.
func (c *Context) Node(i int) *Value { return &c.nodes[i] }

// EntryZero returns the arena index of the pre-seeded constant-zero
// node.
func (c *Context) EntryZero() int { return c.entryZero }

func (c *Context) alloc(kind Kind) (*Value, error) {
	if c.count >= MaxNodes {
		return nil, ErrCacheOverflow
	}
	idx := c.count
	c.count++
	v := &c.nodes[idx]
	*v = Value{Kind: kind, Index: idx, A: noValue, B: noValue, C: noValue, LastUse: -1}
	if c.tail == noValue {
		c.head, c.tail = idx, idx
	} else {
		v.Prev = c.tail
		c.nodes[c.tail].Next = idx
		c.tail = idx
	}
	v.Next = noValue
	return v, nil
}

// GuestReg returns the arena index currently bound to guest register
// r, or noValue if it has never been loaded or written in this block.
func (c *Context) GuestReg(r uint8) int { return c.guestGPRToValue[r] }

// BindGuestReg updates the value-numbering map. Binding r0 is a no-op:
// entry 0's binding is never rebound (spec.md §4.7).
func (c *Context) BindGuestReg(r uint8, valueIdx int) {
	if r == 0 {
		return
	}
	c.guestGPRToValue[r] = valueIdx
}

// Terminated reports whether a block-exit instruction has been
// emitted yet.
func (c *Context) Terminated() bool { return c.terminated }

// Finalize checks the block-termination invariant (spec.md §4.7): at
// least one SET_BLOCK_EXIT_PC, SET_COND_BLOCK_EXIT_PC, or ERET must
// have been emitted.
func (c *Context) Finalize() error {
	if !c.terminated {
		return ErrUnterminatedBlock
	}
	return nil
}

// Each walks the emission-order list from first to last, in arena
// index order (equivalent to following Next from head, but a plain
// loop since indices were assigned in emission order).
func (c *Context) Each(fn func(*Value)) {
	for i := 0; i < c.count; i++ {
		fn(&c.nodes[i])
	}
}
