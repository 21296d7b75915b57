package stego

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// Permutation hands out distinct slot indices in a pseudorandom order fixed
// by the password. It is a lazy Fisher-Yates shuffle: only the slots touched
// so far are remembered, so large carriers cost memory proportional to the
// number of draws.
type Permutation struct {
	src     *rand.PCG
	total   int
	drawn   int
	swapped map[int]int
}

// NewPermutation seeds a PCG generator from SHA-256(password).
// The stream is distinct from the crypto/rand stream used for salts and IVs.
func NewPermutation(password string, totalSlots int) *Permutation {
	sum := sha256.Sum256([]byte(password))
	return &Permutation{
		src:     rand.NewPCG(binary.BigEndian.Uint64(sum[0:8]), binary.BigEndian.Uint64(sum[8:16])),
		total:   totalSlots,
		swapped: make(map[int]int),
	}
}

// Next returns the next slot. It fails with ErrCapacity once every slot has
// been handed out.
func (p *Permutation) Next() (int, error) {
	if p.drawn >= p.total {
		return -1, fmt.Errorf("%w: all %d slots used", ErrCapacity, p.total)
	}

	j := p.drawn + int(p.bounded(uint64(p.total-p.drawn)))
	picked := p.at(j)
	p.swapped[j] = p.at(p.drawn)
	delete(p.swapped, p.drawn)
	p.drawn++
	return picked, nil
}

// Remaining is the number of slots not yet handed out.
func (p *Permutation) Remaining() int {
	return p.total - p.drawn
}

func (p *Permutation) at(i int) int {
	if v, ok := p.swapped[i]; ok {
		return v
	}
	return i
}

// bounded draws uniformly from [0, n) by rejection, so the sequence depends
// only on the PCG output and not on helper implementations.
func (p *Permutation) bounded(n uint64) uint64 {
	threshold := -n % n
	for {
		x := p.src.Uint64()
		if x >= threshold {
			return x % n
		}
	}
}

// Positions returns the first count indices of the password's permutation
// of [0, totalSlots). Shorter requests are prefixes of longer ones.
func Positions(password string, totalSlots, count int) ([]int, error) {
	if count < 0 || count > totalSlots {
		return nil, fmt.Errorf("%w: need %d slots, have %d", ErrCapacity, count, totalSlots)
	}
	p := NewPermutation(password, totalSlots)
	out := make([]int, count)
	for i := range out {
		idx, err := p.Next()
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}
