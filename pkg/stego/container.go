package stego

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// HeaderSize is the fixed prefix of every container:
// length(4) | crc32(4) | salt(16) | iv(16).
const HeaderSize = 4 + 4 + SaltSize + IVSize

// Container is the exact byte layout that gets hidden in the carrier.
type Container struct {
	Length     uint32
	Checksum   uint32
	Salt       []byte
	IV         []byte
	Ciphertext []byte
}

// Pack frames a sealed payload. All integers are big-endian and the checksum
// is CRC32-IEEE over the ciphertext.
func Pack(s *Sealed) ([]byte, error) {
	if len(s.Salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(s.Salt))
	}
	if len(s.IV) != IVSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", IVSize, len(s.IV))
	}

	out := make([]byte, HeaderSize+len(s.Ciphertext))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(s.Ciphertext)))
	binary.BigEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(s.Ciphertext))
	copy(out[8:8+SaltSize], s.Salt)
	copy(out[8+SaltSize:HeaderSize], s.IV)
	copy(out[HeaderSize:], s.Ciphertext)
	return out, nil
}

// PackedSize is the container size for a plaintext of n bytes.
func PackedSize(n int) int {
	return HeaderSize + (n/IVSize+1)*IVSize
}

// ParseHeader reads the declared ciphertext length from the first HeaderSize
// bytes. Backends use it to know how much more to read.
func ParseHeader(b []byte) (uint32, error) {
	if len(b) < HeaderSize {
		return 0, fmt.Errorf("%w: need %d header bytes, have %d", ErrTruncated, HeaderSize, len(b))
	}
	length := binary.BigEndian.Uint32(b[0:4])
	if length == 0 || length%IVSize != 0 {
		return 0, fmt.Errorf("%w: implausible ciphertext length %d", ErrIntegrity, length)
	}
	return length, nil
}

// Unpack parses a container without checking the CRC. Bytes after the
// declared ciphertext are ignored.
func Unpack(b []byte) (*Container, error) {
	length, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	if uint64(len(b)-HeaderSize) < uint64(length) {
		return nil, fmt.Errorf("%w: declared %d ciphertext bytes, have %d", ErrTruncated, length, len(b)-HeaderSize)
	}

	c := &Container{
		Length:     length,
		Checksum:   binary.BigEndian.Uint32(b[4:8]),
		Salt:       append([]byte(nil), b[8:8+SaltSize]...),
		IV:         append([]byte(nil), b[8+SaltSize:HeaderSize]...),
		Ciphertext: append([]byte(nil), b[HeaderSize:HeaderSize+int(length)]...),
	}
	return c, nil
}

// Validate recomputes the CRC over the ciphertext.
func (c *Container) Validate() error {
	if int(c.Length) != len(c.Ciphertext) {
		return fmt.Errorf("%w: length field %d, ciphertext %d", ErrIntegrity, c.Length, len(c.Ciphertext))
	}
	if sum := crc32.ChecksumIEEE(c.Ciphertext); sum != c.Checksum {
		return fmt.Errorf("%w: crc32 %08x, expected %08x", ErrIntegrity, sum, c.Checksum)
	}
	return nil
}

// Sealed returns the fields Decrypt needs.
func (c *Container) Sealed() *Sealed {
	return &Sealed{Salt: c.Salt, IV: c.IV, Ciphertext: c.Ciphertext}
}

// Size is the number of bytes the container occupies when packed.
func (c *Container) Size() int {
	return HeaderSize + len(c.Ciphertext)
}

// Open is Unpack followed by Validate.
func Open(b []byte) (*Container, error) {
	c, err := Unpack(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
