package bytecode

import (
	"io"
	"math/bits"

	"github.com/ccoveille/go-safecast"
	"github.com/pkg/errors"
)

// ---------------------------------------------------------------------------
// Packed integers
// ---------------------------------------------------------------------------
//
// Operands are written as variable-length signed integers:
//
//   small   1 byte     -64..127, the byte itself (first two bits not "10")
//   medium  2 bytes    13-bit value, first byte 100xxxxx
//   large   1+n bytes  first byte 101nnnnn holds n-1 (n in 2..8), then n
//                      big-endian two's complement bytes
//   huge    1+m+n      first byte 10100000, then a packed length n (1..8),
//                      then n bytes; accepted on read, never written

// ErrOperandRange is returned when a packed value does not fit an operand.
var ErrOperandRange = errors.New("operand out of range")

// PackedSize returns the number of bytes v occupies when packed.
func PackedSize(v int64) int {
	if v <= 127 && v >= -64 {
		return 1
	}
	n := significantBits(v)
	if n <= 13 {
		return 2
	}
	return 1 + (n+7)>>3
}

// AppendPackedInt appends the packed form of v to dst.
func AppendPackedInt(dst []byte, v int64) []byte {
	if v <= 127 && v >= -64 {
		return append(dst, byte(v))
	}
	n := significantBits(v)
	if n <= 13 {
		u := 0x8000 | uint16(v)&0x1FFF
		return append(dst, byte(u>>8), byte(u))
	}
	size := (n + 7) >> 3
	dst = append(dst, 0xA0|byte(size-1))
	for shift := (size - 1) * 8; shift >= 0; shift -= 8 {
		dst = append(dst, byte(v>>uint(shift)))
	}
	return dst
}

// WritePackedInt writes the packed form of v to w.
func WritePackedInt(w io.ByteWriter, v int64) error {
	var scratch [9]byte
	for _, b := range AppendPackedInt(scratch[:0], v) {
		if err := w.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}

// ReadPackedInt reads one packed integer from r.
func ReadPackedInt(r io.ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, errors.Wrap(err, "read packed integer")
	}
	return readPacked(r, b, false)
}

// ReadOperand reads a packed integer and narrows it to an operand.
func ReadOperand(r io.ByteReader) (int, error) {
	v, err := ReadPackedInt(r)
	if err != nil {
		return 0, err
	}
	n, err := safecast.ToInt32(v)
	if err != nil {
		return 0, errors.Wrapf(ErrOperandRange, "value %d", v)
	}
	return int(n), nil
}

// PackedLength returns the length of the packed integer at the start of
// data, or 0 if data is too short to tell.
func PackedLength(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	b := data[0]
	switch {
	case b&0xC0 != 0x80:
		return 1
	case b&0x20 == 0:
		return 2
	}
	if n := 1 + int(b&0x1F); n > 1 {
		return 1 + n
	}
	if len(data) < 2 {
		return 0
	}
	inner := PackedLength(data[1:])
	if inner == 0 || len(data) < 1+inner {
		return 0
	}
	size, err := ReadPackedInt(&sliceReader{data: data[1 : 1+inner]})
	if err != nil || size < 1 || size > 8 {
		return 0
	}
	return 1 + inner + int(size)
}

func readPacked(r io.ByteReader, b byte, nested bool) (int64, error) {
	if b&0xC0 != 0x80 {
		return int64(int8(b)), nil
	}

	if b&0x20 == 0 {
		lo, err := r.ReadByte()
		if err != nil {
			return 0, errors.Wrap(err, "read medium packed integer")
		}
		// sign-extend the 5 payload bits of the first byte
		hi := int32(b) << 27 >> 19
		return int64(hi | int32(lo)), nil
	}

	size := 1 + int(b&0x1F)
	if size == 1 {
		if nested {
			return 0, errors.New("illegal recursive packed integer length")
		}
		lb, err := r.ReadByte()
		if err != nil {
			return 0, errors.Wrap(err, "read huge packed integer length")
		}
		n, err := readPacked(r, lb, true)
		if err != nil {
			return 0, err
		}
		if n < 1 || n > 8 {
			return 0, errors.Errorf("huge packed integer length %d outside 1..8", n)
		}
		size = int(n)
	}
	if size > 8 {
		return 0, errors.Errorf("packed integer of %d bytes exceeds 64 bits", size)
	}

	var v int64
	for i := 0; i < size; i++ {
		c, err := r.ReadByte()
		if err != nil {
			return 0, errors.Wrapf(err, "read byte %d of %d-byte packed integer", i, size)
		}
		if i == 0 {
			v = int64(int8(c))
		} else {
			v = v<<8 | int64(c)
		}
	}
	return v, nil
}

// significantBits is the number of bits needed for v in two's complement,
// sign bit included.
func significantBits(v int64) int {
	if v < 0 {
		v = ^v
	}
	return 65 - bits.LeadingZeros64(uint64(v))
}

type sliceReader struct {
	data []byte
	pos  int
}

func (s *sliceReader) ReadByte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, io.ErrUnexpectedEOF
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}
