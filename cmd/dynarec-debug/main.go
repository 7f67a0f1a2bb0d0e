// Command dynarec-debug is an interactive single-block stepper and
// state-dump console, the ambient debugging tool spec.md §6 leaves to
// the implementation. Its command-table dispatch is grounded on
// command/parser/parser.go's cmdList shape; its REPL loop on
// command/reader/reader.go's liner.NewLiner usage, swapped from a
// telnet-multiplexed session to a local terminal one.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	getopt "github.com/pborman/getopt/v2"
	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/kdyn/n64dynarec/config"
	"github.com/kdyn/n64dynarec/dynarec"
	"github.com/kdyn/n64dynarec/internal/logging"
	"github.com/kdyn/n64dynarec/memory"
	"github.com/kdyn/n64dynarec/state"
)

const kseg1Base = 0xA0000000

type console struct {
	disp *dynarec.Dispatcher
	cpu  *state.CPU
	ram  *memory.RAM
	log  *slog.Logger
}

type cmd struct {
	name    string
	min     int
	process func(*console, *cmdLine) (quit bool, err error)
}

type cmdLine struct {
	line string
	pos  int
}

func (l *cmdLine) word() string {
	for l.pos < len(l.line) && l.line[l.pos] == ' ' {
		l.pos++
	}
	start := l.pos
	for l.pos < len(l.line) && l.line[l.pos] != ' ' {
		l.pos++
	}
	return l.line[start:l.pos]
}

var cmdList = []cmd{
	{name: "step", min: 1, process: cmdStep},
	{name: "regs", min: 2, process: cmdRegs},
	{name: "pc", min: 2, process: cmdPC},
	{name: "cp0", min: 3, process: cmdCP0},
	{name: "flush", min: 1, process: cmdFlush},
	{name: "load", min: 1, process: cmdLoad},
	{name: "quit", min: 1, process: cmdQuit},
	{name: "help", min: 1, process: cmdHelp},
}

func matchCommand(name string) []cmd {
	if name == "" {
		return nil
	}
	var exact *cmd
	var matches []cmd
	for i := range cmdList {
		c := &cmdList[i]
		if c.name == name {
			exact = c
			break
		}
		if len(name) >= c.min && strings.HasPrefix(c.name, name) {
			matches = append(matches, *c)
		}
	}
	if exact != nil {
		return []cmd{*exact}
	}
	return matches
}

func processLine(con *console, line string) (quit bool, err error) {
	l := &cmdLine{line: line}
	name := l.word()
	matches := matchCommand(name)
	if len(matches) == 0 {
		return false, fmt.Errorf("unknown command: %q", name)
	}
	if len(matches) > 1 {
		return false, fmt.Errorf("ambiguous command: %q", name)
	}
	return matches[0].process(con, l)
}

func cmdStep(con *console, l *cmdLine) (bool, error) {
	n := 1
	if w := l.word(); w != "" {
		v, err := strconv.Atoi(w)
		if err != nil {
			return false, fmt.Errorf("step: %w", err)
		}
		n = v
	}
	for i := 0; i < n; i++ {
		cycles, err := con.disp.Step()
		if err != nil {
			return false, err
		}
		fmt.Printf("pc=%#08x cycles=%d\n", con.cpu.PC, cycles)
	}
	return false, nil
}

func cmdRegs(con *console, _ *cmdLine) (bool, error) {
	for i := 0; i < 32; i += 4 {
		fmt.Printf("r%-2d=%#016x r%-2d=%#016x r%-2d=%#016x r%-2d=%#016x\n",
			i, con.cpu.GPRRead(uint8(i)),
			i+1, con.cpu.GPRRead(uint8(i+1)),
			i+2, con.cpu.GPRRead(uint8(i+2)),
			i+3, con.cpu.GPRRead(uint8(i+3)))
	}
	return false, nil
}

func cmdPC(con *console, _ *cmdLine) (bool, error) {
	fmt.Printf("pc=%#08x next_pc=%#08x prev_pc=%#08x hi=%#016x lo=%#016x\n",
		con.cpu.PC, con.cpu.NextPC, con.cpu.PrevPC, con.cpu.MultHi, con.cpu.MultLo)
	return false, nil
}

func cmdCP0(con *console, _ *cmdLine) (bool, error) {
	cp0 := &con.cpu.CP0
	fmt.Printf("status=%#08x cause=%#08x epc=%#08x badvaddr=%#08x exception_code=%d exl=%v\n",
		cp0.ReadStatus(), cp0.ReadCause(), cp0.EPC, cp0.BadVAddr, cp0.Cause.ExceptionCode, cp0.Status.EXL())
	return false, nil
}

func cmdFlush(con *console, _ *cmdLine) (bool, error) {
	if err := con.disp.FlushCodeCache(); err != nil {
		return false, err
	}
	con.disp.FlushBlockCache()
	fmt.Println("code cache and block cache flushed")
	return false, nil
}

func cmdLoad(con *console, l *cmdLine) (bool, error) {
	path := l.word()
	if path == "" {
		return false, errors.New("load: missing file path")
	}
	addrWord := l.word()
	var addr uint64
	if addrWord != "" {
		v, err := strconv.ParseUint(strings.TrimPrefix(addrWord, "0x"), 16, 32)
		if err != nil {
			return false, fmt.Errorf("load: bad address: %w", err)
		}
		addr = v
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	for i, b := range image {
		con.ram.WriteByte(uint32(addr)+uint32(i), b)
	}
	con.disp.FlushBlockCache()
	fmt.Printf("loaded %d bytes at %#08x\n", len(image), addr)
	return false, nil
}

func cmdQuit(_ *console, _ *cmdLine) (bool, error) { return true, nil }

func cmdHelp(_ *console, _ *cmdLine) (bool, error) {
	fmt.Println("commands: step [n], regs, pc, cp0, flush, load <path> [addr], quit, help")
	return false, nil
}

func completeCmd(line string) []string {
	l := &cmdLine{line: line}
	name := l.word()
	if !strings.HasSuffix(line, " ") && l.pos < len(l.line) {
		return nil
	}
	var out []string
	for _, c := range cmdList {
		if strings.HasPrefix(c.name, name) {
			out = append(out, c.name)
		}
	}
	return out
}

func main() {
	optRAMSize := getopt.IntLong("ramsize", 'r', 4<<20, "Guest RAM size in bytes")
	optProgram := getopt.StringLong("program", 'p', "", "Raw MIPS III program image to preload")
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
			fmt.Fprintln(os.Stderr, "dynarec-debug: ", err)
			os.Exit(1)
		}
	}
	logger := slog.New(logging.New(logFile, false))
	slog.SetDefault(logger)

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		logger.Warn("stdin is not a terminal; line editing and history will be limited")
	}

	ram := memory.NewRAM(*optRAMSize)
	if *optProgram != "" {
		image, err := os.ReadFile(*optProgram)
		if err != nil {
			logger.Error("reading program", "path", *optProgram, "error", err)
			os.Exit(1)
		}
		for i, b := range image {
			ram.WriteByte(uint32(i), b)
		}
	}

	cpu := &state.CPU{}
	cpu.Reset()
	cpu.PC = kseg1Base

	disp, err := dynarec.New(cpu, ram, config.Default())
	if err != nil {
		logger.Error("dynarec.New", "error", err)
		os.Exit(1)
	}
	defer disp.Close()

	con := &console{disp: disp, cpu: cpu, ram: ram, log: logger}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCmd)

	for {
		input, err := line.Prompt("dynarec> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			logger.Error("reading line", "error", err)
			return
		}
		line.AppendHistory(input)

		quit, err := processLine(con, input)
		if err != nil {
			fmt.Println("error: " + err.Error())
		}
		if quit {
			return
		}
	}
}
