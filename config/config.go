// Package config parses the dynarec core's tuning file: a small
// key = value text format in the same line-oriented shape as
// config/configparser (trim, split on '=', '#' starts a comment,
// unknown keys are rejected) generalized from S370 device-attach
// lines to the core's own handful of tunables.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Config holds the tunables spec.md leaves to the implementation
// (code-cache size, block length limit, default FPU behavior). The
// block-cache granularity is not configurable: it is fixed by
// constants in package blockcache.
type Config struct {
	CodeCacheBytes      int
	MaxBlockInstrs      int
	DefaultRoundingMode uint8
	FlushSubnormals     bool
}

// Default returns the out-of-the-box tunables: a 4MiB code cache, a
// 1024-instruction block cap matching the IR arena's sizing rationale
// (spec.md §3 IR Context), round-to-nearest, subnormal flushing off.
func Default() Config {
	return Config{
		CodeCacheBytes:      4 << 20,
		MaxBlockInstrs:      1024,
		DefaultRoundingMode: 0,
		FlushSubnormals:     false,
	}
}

var ErrUnknownKey = errors.New("config: unknown key")

// Parse reads key = value lines from r, starting from Default() and
// overriding only the keys present.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return cfg, fmt.Errorf("config: line %d: missing '=': %q", lineNo, line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.apply(key, value); err != nil {
			return cfg, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) apply(key, value string) error {
	switch key {
	case "codecache_size":
		n, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return fmt.Errorf("codecache_size: %w", err)
		}
		c.CodeCacheBytes = int(n)
	case "max_block_instrs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_block_instrs: %w", err)
		}
		c.MaxBlockInstrs = n
	case "default_rounding_mode":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("default_rounding_mode: %w", err)
		}
		c.DefaultRoundingMode = uint8(n)
	case "flush_subnormals":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("flush_subnormals: %w", err)
		}
		c.FlushSubnormals = b
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}
