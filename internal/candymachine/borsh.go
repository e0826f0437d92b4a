package candymachine

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"candy-gallery/internal/solana"
)

// ErrShortData is returned when account data ends before the layout does.
var ErrShortData = errors.New("account data too short")

// Discriminator returns the 8-byte Anchor account discriminator for name.
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

var (
	candyMachineDiscriminator = Discriminator("CandyMachine")
	candyGuardDiscriminator   = Discriminator("CandyGuard")
)

// reader decodes little-endian borsh values. The first error sticks.
type reader struct {
	data []byte
	off  int
	err  error
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortData, n, r.off, len(r.data))
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) bool() bool {
	return r.u8() != 0
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) i64() int64 {
	return int64(r.u64())
}

func (r *reader) pubkey() solana.PublicKey {
	var pk solana.PublicKey
	copy(pk[:], r.take(solana.PublicKeyLength))
	return pk
}

func (r *reader) string() string {
	n := r.u32()
	return string(r.take(int(n)))
}

func (r *reader) fixed(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (r *reader) skip(n int) {
	r.take(n)
}

func (r *reader) discriminator(want [8]byte) {
	b := r.take(8)
	if b == nil {
		return
	}
	var got [8]byte
	copy(got[:], b)
	if got != want {
		r.err = fmt.Errorf("%w: discriminator %x", ErrWrongAccountType, got)
	}
}

// writer is the inverse of reader, used to build account fixtures.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *writer) i64(v int64)  { w.u64(uint64(v)) }

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) pubkey(pk solana.PublicKey) { w.buf = append(w.buf, pk[:]...) }

func (w *writer) string(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }
