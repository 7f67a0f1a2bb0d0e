// Command dynarec-diff runs a raw MIPS III program image through the
// JIT dispatcher and the interpreter oracle side by side, instruction
// group by instruction group, and reports the first point at which
// their architectural state diverges. It is the differential-testing
// collaborator spec.md §6 names, mirroring
// original_source/src/tools/dynarec_compare.c's two-engine compare
// loop without literally forking: two goroutines fill independent
// shared-memory snapshots and hand off over a socket pair instead of
// the original's two child processes and POSIX message queues.
package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"

	getopt "github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"

	"github.com/kdyn/n64dynarec/config"
	"github.com/kdyn/n64dynarec/dynarec"
	"github.com/kdyn/n64dynarec/interp"
	"github.com/kdyn/n64dynarec/internal/logging"
	"github.com/kdyn/n64dynarec/memory"
	"github.com/kdyn/n64dynarec/state"
)

// kseg1Base is the unmapped, uncached virtual window direct-mapped to
// physical address 0; a loaded image starts executing there so no TLB
// entries need installing for either engine.
const kseg1Base = 0xA0000000

func main() {
	optProgram := getopt.StringLong("program", 'p', "", "Raw MIPS III program image to load")
	optSteps := getopt.IntLong("steps", 'n', 1000, "Instruction groups to execute before stopping")
	optRAMSize := getopt.IntLong("ramsize", 'r', 1<<20, "Guest RAM size in bytes")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var logFile *os.File
	if *optLogFile != "" {
		var err error
		logFile, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "dynarec-diff: ", err)
			os.Exit(1)
		}
	}
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	logger := slog.New(logging.New(logFile, false))
	slog.SetDefault(logger)

	if *optProgram == "" {
		logger.Error("missing required --program")
		os.Exit(1)
	}

	image, err := os.ReadFile(*optProgram)
	if err != nil {
		logger.Error("reading program image", "path", *optProgram, "error", err)
		os.Exit(1)
	}

	jitCPU, jitBus := newGuest(image, *optRAMSize)
	interpCPU, interpBus := newGuest(image, *optRAMSize)

	disp, err := dynarec.New(jitCPU, jitBus, config.Default())
	if err != nil {
		logger.Error("dynarec.New", "error", err)
		os.Exit(1)
	}
	defer disp.Close()

	jitHandoff, err := newHandoff()
	if err != nil {
		logger.Error("jit handoff socketpair", "error", err)
		os.Exit(1)
	}
	defer jitHandoff.close()

	interpHandoff, err := newHandoff()
	if err != nil {
		logger.Error("interp handoff socketpair", "error", err)
		os.Exit(1)
	}
	defer interpHandoff.close()

	jitSnap, err := newSharedSnapshot()
	if err != nil {
		logger.Error("jit shared snapshot", "error", err)
		os.Exit(1)
	}
	defer jitSnap.close()

	interpSnap, err := newSharedSnapshot()
	if err != nil {
		logger.Error("interp shared snapshot", "error", err)
		os.Exit(1)
	}
	defer interpSnap.close()

	for step := 0; step < *optSteps; step++ {
		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			if _, err := disp.Step(); err != nil {
				logger.Error("jit step failed", "step", step, "error", err)
			}
			putSnapshot(jitSnap.mem, jitCPU)
			if err := jitHandoff.signal(); err != nil {
				logger.Error("jit signal", "error", err)
			}
		}()

		go func() {
			defer wg.Done()
			interp.Step(interpCPU, interpBus)
			putSnapshot(interpSnap.mem, interpCPU)
			if err := interpHandoff.signal(); err != nil {
				logger.Error("interp signal", "error", err)
			}
		}()

		if err := jitHandoff.wait(); err != nil {
			logger.Error("jit wait", "error", err)
			os.Exit(1)
		}
		if err := interpHandoff.wait(); err != nil {
			logger.Error("interp wait", "error", err)
			os.Exit(1)
		}
		wg.Wait()

		if !bytes.Equal(jitSnap.mem, interpSnap.mem) {
			logger.Error("state diverged",
				"step", step,
				"jit_pc", fmt.Sprintf("%#x", jitCPU.PC),
				"interp_pc", fmt.Sprintf("%#x", interpCPU.PC))
			os.Exit(1)
		}
	}

	logger.Info("no divergence observed", "steps", *optSteps)
}

// newGuest allocates a fresh RAM of ramSize bytes, loads image at
// physical address 0, and returns a CPU reset and pointed at the
// kseg1 entry point.
func newGuest(image []byte, ramSize int) (*state.CPU, *memory.RAM) {
	ram := memory.NewRAM(ramSize)
	for i, b := range image {
		ram.WriteByte(uint32(i), b)
	}
	cpu := &state.CPU{}
	cpu.Reset()
	cpu.PC = kseg1Base
	return cpu, ram
}

// snapshotSize covers every register the two engines must agree on
// bit for bit: all 32 GPRs, the resolved PC, and the HI/LO multiply
// pair MULT/DIV and MFHI/MFLO/MTHI/MTLO thread through.
const snapshotSize = 32*8 + 4 + 8 + 8

func putSnapshot(buf []byte, cpu *state.CPU) {
	off := 0
	for i := 0; i < 32; i++ {
		binary.BigEndian.PutUint64(buf[off:], cpu.GPR[i])
		off += 8
	}
	binary.BigEndian.PutUint32(buf[off:], cpu.PC)
	off += 4
	binary.BigEndian.PutUint64(buf[off:], cpu.MultHi)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], cpu.MultLo)
}

// sharedSnapshot is a memfd-backed, mmap'd region a worker goroutine
// writes its post-step state into, standing in for the shared CPU
// state segment the original two-process comparator mapped with
// shm_open.
type sharedSnapshot struct {
	fd  int
	mem []byte
}

func newSharedSnapshot() (*sharedSnapshot, error) {
	fd, err := unix.MemfdCreate("dynarec-diff-snapshot", 0)
	if err != nil {
		return nil, err
	}
	if err := unix.Ftruncate(fd, int64(snapshotSize)); err != nil {
		unix.Close(fd)
		return nil, err
	}
	mem, err := unix.Mmap(fd, 0, snapshotSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &sharedSnapshot{fd: fd, mem: mem}, nil
}

func (s *sharedSnapshot) close() error {
	err := unix.Munmap(s.mem)
	if cerr := unix.Close(s.fd); err == nil {
		err = cerr
	}
	return err
}

// handoff is a connected socket pair a worker goroutine signals on
// once its snapshot is ready, the stand-in for the POSIX message
// queue the original comparator used to serialize cycle counts
// between its two child processes.
type handoff struct {
	fds [2]int
}

func newHandoff() (*handoff, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	return &handoff{fds: fds}, nil
}

func (h *handoff) signal() error {
	_, err := unix.Write(h.fds[0], []byte{1})
	return err
}

func (h *handoff) wait() error {
	buf := make([]byte, 1)
	_, err := unix.Read(h.fds[1], buf)
	return err
}

func (h *handoff) close() error {
	e0 := unix.Close(h.fds[0])
	e1 := unix.Close(h.fds[1])
	if e0 != nil {
		return e0
	}
	return e1
}
