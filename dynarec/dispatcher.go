// Package dynarec ties the decoder, IR builder/optimizer, register
// allocator, emitter, and the two caches into the dispatch loop a
// guest-code consumer drives one block at a time (C1-C10 end to end).
// Any instruction translate.go declines is executed by the interp
// oracle instead, so the dispatcher always makes forward progress
// even on day one of a new opcode's support.
package dynarec

import (
	"errors"

	"github.com/kdyn/n64dynarec/blockcache"
	"github.com/kdyn/n64dynarec/codecache"
	"github.com/kdyn/n64dynarec/config"
	"github.com/kdyn/n64dynarec/decoder"
	"github.com/kdyn/n64dynarec/emitter"
	"github.com/kdyn/n64dynarec/interp"
	"github.com/kdyn/n64dynarec/ir"
	"github.com/kdyn/n64dynarec/memory"
	"github.com/kdyn/n64dynarec/regalloc"
	"github.com/kdyn/n64dynarec/state"
)

// Dispatcher owns one guest CPU's translation caches and drives
// execution block by block.
type Dispatcher struct {
	CPU    *state.CPU
	Bus    memory.Bus
	Blocks *blockcache.Cache
	Code   *codecache.Cache
	Cfg    config.Config

	ctx ir.Context
}

// New builds a dispatcher over cpu/bus with cfg's tunables, mapping
// its own code cache (C5).
func New(cpu *state.CPU, bus memory.Bus, cfg config.Config) (*Dispatcher, error) {
	blocks := &blockcache.Cache{}
	code, err := codecache.New(cfg.CodeCacheBytes, blocks)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{CPU: cpu, Bus: bus, Blocks: blocks, Code: code, Cfg: cfg}, nil
}

// Close releases the code cache's mapping.
func (d *Dispatcher) Close() error { return d.Code.Close() }

// FlushCodeCache discards every translated block and resets the bump
// allocator, used when the code cache fills or a guest store
// invalidates self-modifying code (spec.md §4.5's cache-flush path).
func (d *Dispatcher) FlushCodeCache() error { return d.Code.Flush() }

// FlushBlockCache drops block-cache entries without touching the
// code cache's bytes, for a guest operation that only needs lookup
// invalidation (e.g. a store into a narrow range already covered by
// InvalidateRange).
func (d *Dispatcher) FlushBlockCache() { d.Blocks.InvalidateAll() }

// Step resolves the current PC, runs one block (translating and
// installing it first if this is the first visit), and advances
// cpu.PC/Count/Random. It returns the cycles the block consumed.
func (d *Dispatcher) Step() (int, error) {
	cpu := d.CPU
	paddr, fault := memory.Resolve(&cpu.CP0, uint64(cpu.PC), memory.AccessFetch)
	if fault != nil {
		emitter.RaiseException(cpu, fault.Kind.ExceptionCode(memory.AccessFetch), uint32(fault.VAddr))
		return 1, nil
	}

	block := d.Blocks.Lookup(paddr)
	if block == nil {
		var err error
		block, err = d.translateBlock(paddr)
		if err != nil {
			if errors.Is(err, errSingleInstrFallback) {
				// Blocks only set cpu.PC; interp.Step advances through
				// NextPC, so seed it for the instruction at a block boundary.
				cpu.NextPC = cpu.PC + 4
				cycles := interp.Step(cpu, d.Bus)
				cpu.CP0.TickCount(cycles)
				cpu.CP0.TickRandom()
				return cycles, nil
			}
			return 0, err
		}
	}

	nextPC, cycles := block.Entry(cpu)
	cpu.PC = nextPC
	cpu.CP0.TickCount(cycles)
	cpu.CP0.TickRandom()
	return cycles, nil
}

// errSingleInstrFallback signals that the very first instruction of
// a prospective block could not be translated, so no block is worth
// installing: the dispatcher should just run the interpreter for this
// one instruction instead.
var errSingleInstrFallback = errors.New("dynarec: no translatable instructions at this address")

// translateBlock decodes and translates guest instructions starting
// at paddr until a terminator is emitted, the block-length cap is
// hit, or an unsupported opcode is found. A branch/jump's exit comes
// from translateBranch; the cap and an unsupported opcode end the
// block with an unconditional exit to the current pc emitted here.
func (d *Dispatcher) translateBlock(paddr uint32) (*blockcache.Block, error) {
	ctx := &d.ctx
	ctx.Reset()

	startPAddr := paddr
	pc := d.CPU.PC
	count := 0

	for {
		if count >= d.Cfg.MaxBlockInstrs {
			if _, err := ctx.EmitSetBlockExitPC(pc); err != nil {
				return nil, err
			}
			break
		}

		word := d.Bus.ReadWord(paddr)
		dec := decoder.Decode(word)

		if isBranchOrJump(dec.Op) {
			delayWord := d.Bus.ReadWord(paddr + 4)
			delayDec := decoder.Decode(delayWord)
			if !isBranchOrJump(delayDec.Op) {
				if err := translateOne(ctx, delayDec, pc+4); err != nil {
					if isUnsupported(err) && count == 0 {
						return nil, errSingleInstrFallback
					}
					// Can't translate the delay slot statically either;
					// end the block right before the branch so the
					// interpreter picks up from here and handles both
					// the branch and its delay slot together.
					if _, serr := ctx.EmitSetBlockExitPC(pc); serr != nil {
						return nil, serr
					}
					break
				}
			}
			if err := translateBranch(ctx, dec, pc, d.CPU); err != nil {
				return nil, err
			}
			count++
			break
		}

		if err := translateOne(ctx, dec, pc); err != nil {
			if isUnsupported(err) {
				if count == 0 {
					return nil, errSingleInstrFallback
				}
				if _, serr := ctx.EmitSetBlockExitPC(pc); serr != nil {
					return nil, serr
				}
				break
			}
			return nil, err
		}

		count++
		paddr += 4
		pc += 4
		if ctx.Terminated() {
			break
		}
	}

	if err := ctx.Finalize(); err != nil {
		return nil, err
	}
	ctx.Optimize()
	regalloc.Allocate(ctx)

	entry, hostBytes, err := emitter.Compile(ctx, d.Bus)
	if err != nil {
		return nil, err
	}

	if err := d.Code.BeginEmit(); err != nil {
		return nil, err
	}
	buf, err := d.Code.Reserve(len(hostBytes))
	if errors.Is(err, codecache.ErrFull) {
		if ferr := d.Code.Flush(); ferr != nil {
			return nil, ferr
		}
		buf, err = d.Code.Reserve(len(hostBytes))
	}
	if err != nil {
		return nil, err
	}
	offset := d.Code.Offset() - len(hostBytes)
	copy(buf, hostBytes)
	if err := d.Code.EndEmit(); err != nil {
		return nil, err
	}

	block := &blockcache.Block{
		PAddr:     startPAddr,
		GuestLen:  uint32(count * 4),
		Entry:     entry,
		HostAddr:  d.Code.BaseAddr(offset),
		HostBytes: len(hostBytes),
	}
	d.Blocks.Install(block)
	return block, nil
}

