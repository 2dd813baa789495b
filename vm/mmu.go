// This file is part of nyx, a small register machine and toolchain.
//
// Adapted from github.com/db47h/ngaro's flat vm.Image into an ordered list
// of named buses, so that extensions loaded through the plugin loader
// (extension.go) can register additional backing stores (memory-mapped
// device buffers, mock filesystems for tests, ...) behind the same
// read/write interface the interpreter uses for main memory.

package vm

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Bus is a uniformly addressable memory-like backing store. The VM Core
// only ever calls Read/Write/ReadSlice/WriteSlice; PlainBlock is the only
// implementation Nyx itself constructs, but extensions may register their
// own via MMU.AddBus.
type Bus interface {
	Name() string
	Size() uint64
	Read(off uint64) (byte, error)
	Write(off uint64, b byte) error
	ReadSlice(off uint64, n uint64) ([]byte, error)
	WriteSlice(off uint64, data []byte) error
}

// PlainBlock is a Bus backed by a flat, fixed-size byte slice: the only bus
// kind Nyx itself constructs (the "main" memory and "heap" blocks).
type PlainBlock struct {
	name string
	data []byte
}

// NewPlainBlock allocates a zero-filled block of the given size.
func NewPlainBlock(name string, size uint64) *PlainBlock {
	return &PlainBlock{name: name, data: make([]byte, size)}
}

func (b *PlainBlock) Name() string { return b.name }
func (b *PlainBlock) Size() uint64 { return uint64(len(b.data)) }

func (b *PlainBlock) Read(off uint64) (byte, error) {
	if off >= uint64(len(b.data)) {
		return 0, errors.Errorf("bus %q: read out of bounds at %#x", b.name, off)
	}
	return b.data[off], nil
}

func (b *PlainBlock) Write(off uint64, v byte) error {
	if off >= uint64(len(b.data)) {
		return errors.Errorf("bus %q: write out of bounds at %#x", b.name, off)
	}
	b.data[off] = v
	return nil
}

func (b *PlainBlock) ReadSlice(off, n uint64) ([]byte, error) {
	if off+n > uint64(len(b.data)) || off+n < off {
		return nil, errors.Errorf("bus %q: slice read out of bounds at %#x..%#x", b.name, off, off+n)
	}
	out := make([]byte, n)
	copy(out, b.data[off:off+n])
	return out, nil
}

func (b *PlainBlock) WriteSlice(off uint64, src []byte) error {
	n := uint64(len(src))
	if off+n > uint64(len(b.data)) || off+n < off {
		return errors.Errorf("bus %q: slice write out of bounds at %#x..%#x", b.name, off, off+n)
	}
	copy(b.data[off:off+n], src)
	return nil
}

// MMU routes byte addresses to one of an ordered list of buses by summing
// bus sizes: address a belongs to the first bus whose cumulative size
// exceeds a, at offset a minus the sum of the sizes of the buses before it.
type MMU struct {
	buses []Bus
}

// AddBus appends a bus to the end of the address space.
func (m *MMU) AddBus(b Bus) {
	m.buses = append(m.buses, b)
}

// Size returns the total addressable size across all buses.
func (m *MMU) Size() uint64 {
	var total uint64
	for _, b := range m.buses {
		total += b.Size()
	}
	return total
}

func (m *MMU) locate(addr uint64) (Bus, uint64, error) {
	base := uint64(0)
	for _, b := range m.buses {
		if addr < base+b.Size() {
			return b, addr - base, nil
		}
		base += b.Size()
	}
	return nil, 0, errors.Errorf("address %#x out of range (memory size %#x)", addr, base)
}

// ReadByte reads a single byte at addr.
func (m *MMU) ReadByte(addr uint64) (byte, error) {
	b, off, err := m.locate(addr)
	if err != nil {
		return 0, err
	}
	return b.Read(off)
}

// WriteByte writes a single byte at addr.
func (m *MMU) WriteByte(addr uint64, v byte) error {
	b, off, err := m.locate(addr)
	if err != nil {
		return err
	}
	return b.Write(off, v)
}

// ReadBytes reads n contiguous bytes starting at addr, continuing across
// consecutive bus boundaries until the requested length is satisfied. A
// gap or overrun past the end of the address space is out of bounds.
func (m *MMU) ReadBytes(addr, n uint64) ([]byte, error) {
	out := make([]byte, 0, n)
	for uint64(len(out)) < n {
		b, off, err := m.locate(addr + uint64(len(out)))
		if err != nil {
			return nil, err
		}
		chunk := b.Size() - off
		if remaining := n - uint64(len(out)); chunk > remaining {
			chunk = remaining
		}
		part, err := b.ReadSlice(off, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

// WriteBytes writes data starting at addr, continuing across consecutive
// bus boundaries until every byte is written.
func (m *MMU) WriteBytes(addr uint64, data []byte) error {
	written := uint64(0)
	for written < uint64(len(data)) {
		b, off, err := m.locate(addr + written)
		if err != nil {
			return err
		}
		chunk := b.Size() - off
		if remaining := uint64(len(data)) - written; chunk > remaining {
			chunk = remaining
		}
		if err := b.WriteSlice(off, data[written:written+chunk]); err != nil {
			return err
		}
		written += chunk
	}
	return nil
}

// imageHeaderSize is the fixed 8-byte little-endian entry-point offset
// prefixed to every assembled image, per the bytecode builder's Finalize.
const imageHeaderSize = 8

// LoadImage reads an assembled image (header || text || data) from r,
// returning the entry point offset and the raw text/data payload.
func LoadImage(r io.Reader) (entry uint64, payload []byte, err error) {
	var hdr [imageHeaderSize]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, errors.Wrap(err, "read image header")
	}
	entry = binary.LittleEndian.Uint64(hdr[:])
	payload, err = io.ReadAll(r)
	if err != nil {
		return 0, nil, errors.Wrap(err, "read image body")
	}
	return entry, payload, nil
}

// LoadImageFile opens path and reads it as an assembled image.
func LoadImageFile(path string) (entry uint64, payload []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, errors.Wrap(err, "open image")
	}
	defer f.Close()
	return LoadImage(f)
}
