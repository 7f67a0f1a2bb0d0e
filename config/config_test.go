package config

import (
	"errors"
	"strings"
	"testing"
)

func TestParseOverridesDefaults(t *testing.T) {
	input := `
# comment line
codecache_size = 0x200000
max_block_instrs = 512
default_rounding_mode = 2
flush_subnormals = true
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.CodeCacheBytes != 0x200000 {
		t.Errorf("CodeCacheBytes = %#x, want 0x200000", cfg.CodeCacheBytes)
	}
	if cfg.MaxBlockInstrs != 512 {
		t.Errorf("MaxBlockInstrs = %d, want 512", cfg.MaxBlockInstrs)
	}
	if cfg.DefaultRoundingMode != 2 {
		t.Errorf("DefaultRoundingMode = %d, want 2", cfg.DefaultRoundingMode)
	}
	if !cfg.FlushSubnormals {
		t.Error("FlushSubnormals = false, want true")
	}
}

func TestParseUnknownKeyFails(t *testing.T) {
	_, err := Parse(strings.NewReader("bogus_key = 1\n"))
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("err = %v, want ErrUnknownKey", err)
	}
}

func TestParseEmptyInputKeepsDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, Default())
	}
}
