// Package codecache manages the executable memory region translated
// blocks are emitted into (C5): a bump allocator over an mmap'd
// region, toggled between writable and executable with mprotect so
// the region is never both at once (W^X), and a flush path that
// resets the bump pointer and invalidates every installed block.
package codecache

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kdyn/n64dynarec/blockcache"
)

// Cache is a single mmap'd region of host code, written by the
// emitter in bursts and executed by the dispatcher between bursts.
type Cache struct {
	mem      []byte
	offset   int
	writable bool
	blocks   *blockcache.Cache
}

// New maps size bytes of anonymous memory, starting writable.
func New(size int, blocks *blockcache.Cache) (*Cache, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("codecache: mmap %d bytes: %w", size, err)
	}
	return &Cache{mem: mem, writable: true, blocks: blocks}, nil
}

// Close unmaps the region.
func (c *Cache) Close() error {
	return unix.Munmap(c.mem)
}

// BeginEmit flips the region writable if it is currently executable.
// The emitter calls this once per block before writing any bytes.
func (c *Cache) BeginEmit() error {
	if c.writable {
		return nil
	}
	if err := unix.Mprotect(c.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("codecache: mprotect RW: %w", err)
	}
	c.writable = true
	return nil
}

// EndEmit flips the region executable. The dispatcher must call this
// before jumping into any address this cache has handed out.
func (c *Cache) EndEmit() error {
	if !c.writable {
		return nil
	}
	if err := unix.Mprotect(c.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("codecache: mprotect RX: %w", err)
	}
	c.writable = false
	return nil
}

// ErrFull is returned by Reserve when the region has no room left;
// the caller (the dynarec dispatcher) calls Flush and retries the
// Reserve once.
var ErrFull = fmt.Errorf("codecache: out of space")

// Reserve returns a writable slice of n bytes at the current bump
// offset and advances it. BeginEmit must have been called first.
func (c *Cache) Reserve(n int) ([]byte, error) {
	if !c.writable {
		return nil, fmt.Errorf("codecache: Reserve called while executable")
	}
	if c.offset+n > len(c.mem) {
		return nil, ErrFull
	}
	buf := c.mem[c.offset : c.offset+n]
	c.offset += n
	return buf, nil
}

// BaseAddr returns the host address corresponding to an offset this
// cache previously handed out via Reserve, for the block cache to
// record as a block's entry point.
func (c *Cache) BaseAddr(offset int) uintptr {
	return uintptr(unsafe.Pointer(&c.mem[offset]))
}

// Offset reports the current bump-allocation position, the value a
// caller should remember before Reserve to later recover BaseAddr.
func (c *Cache) Offset() int {
	return c.offset
}

// Flush resets the bump pointer to zero, flips the region writable,
// and invalidates every block in the paired block cache, since none
// of their entry points remain valid once code is overwritten.
func (c *Cache) Flush() error {
	if err := c.BeginEmit(); err != nil {
		return err
	}
	c.offset = 0
	c.blocks.InvalidateAll()
	return nil
}

// ZeroFlush is Flush plus zeroing the whole region first, so that any
// stale entry point a caller forgot to drop crashes immediately
// instead of executing garbage-turned-leftover-code.
func (c *Cache) ZeroFlush() error {
	if err := c.BeginEmit(); err != nil {
		return err
	}
	for i := range c.mem {
		c.mem[i] = 0
	}
	c.offset = 0
	c.blocks.InvalidateAll()
	return nil
}

// Remaining reports how many bytes are left before the next Reserve
// would return ErrFull.
func (c *Cache) Remaining() int {
	return len(c.mem) - c.offset
}
