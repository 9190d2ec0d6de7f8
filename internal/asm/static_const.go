package asm

import "fmt"

// StaticConst represents arbitrary constant bytes which are pooled and
// addressed by the assembled code through the pool's base register.
type StaticConst struct {
	Raw []byte
	// OffsetInPool is the offset of this constant from the beginning of the
	// pool. Valid once the constant has been added to a StaticConstPool.
	OffsetInPool uint64
	// offsetFinalizedCallbacks holds callbacks which are called when
	// OffsetInPool is finalized.
	offsetFinalizedCallbacks []func(offsetInPool uint64)
}

// NewStaticConst returns the pointer to the new StaticConst for the given bytes.
func NewStaticConst(raw []byte) *StaticConst {
	return &StaticConst{Raw: raw}
}

// AddOffsetFinalizedCallback adds a callback into offsetFinalizedCallbacks.
func (s *StaticConst) AddOffsetFinalizedCallback(cb func(offsetInPool uint64)) {
	s.offsetFinalizedCallbacks = append(s.offsetFinalizedCallbacks, cb)
}

// SetOffsetInPool finalizes the offset of this StaticConst, and invokes callbacks.
func (s *StaticConst) SetOffsetInPool(offset uint64) {
	s.OffsetInPool = offset
	for _, cb := range s.offsetFinalizedCallbacks {
		cb(offset)
	}
}

// StaticConstPool holds a bulk of StaticConst which are laid out contiguously.
// Constants with identical content and alignment are stored once.
type StaticConstPool struct {
	// Consts are the constants in the order they were laid out.
	Consts []*StaticConst
	// addedConsts is used to deduplicate the consts to reduce the final size of the pool.
	addedConsts map[*StaticConst]struct{}
	// byContent maps the content (and alignment) of a const to its canonical entry.
	byContent map[string]*StaticConst
	// PoolSizeInBytes is the current size of the pool in bytes, including alignment padding.
	PoolSizeInBytes int
}

// NewStaticConstPool returns the pointer to a new StaticConstPool.
func NewStaticConstPool() *StaticConstPool {
	return &StaticConstPool{
		addedConsts: map[*StaticConst]struct{}{},
		byContent:   map[string]*StaticConst{},
	}
}

// AddConst adds a *StaticConst into the pool aligned to `align` bytes, and returns the
// canonical entry for its content. The returned const may differ from `c` if a
// const with the same content and alignment has already been added.
//
// `align` must be a power of two.
func (p *StaticConstPool) AddConst(c *StaticConst, align int) *StaticConst {
	if align <= 0 || align&(align-1) != 0 {
		panic(fmt.Sprintf("BUG: invalid static const alignment %d", align))
	}
	if _, ok := p.addedConsts[c]; ok {
		return c
	}
	key := fmt.Sprintf("%d:%x", align, c.Raw)
	if existing, ok := p.byContent[key]; ok {
		return existing
	}

	offset := (p.PoolSizeInBytes + align - 1) &^ (align - 1)
	p.Consts = append(p.Consts, c)
	p.addedConsts[c] = struct{}{}
	p.byContent[key] = c
	p.PoolSizeInBytes = offset + len(c.Raw)
	c.SetOffsetInPool(uint64(offset))
	return c
}

// Bytes returns the contents of the pool with the alignment padding zeroed.
func (p *StaticConstPool) Bytes() []byte {
	ret := make([]byte, p.PoolSizeInBytes)
	for _, c := range p.Consts {
		copy(ret[c.OffsetInPool:], c.Raw)
	}
	return ret
}

// Empty returns true if no constant has been added to the pool.
func (p *StaticConstPool) Empty() bool {
	return len(p.Consts) == 0
}
