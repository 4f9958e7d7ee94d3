package services

import (
	"math/rand"

	"vetbridge-affiliate/internal/core/domain"
)

// balancedFanout is the number of direct recruits per affiliate in a balanced tree
const balancedFanout = 3

// HierarchyShaper decides where each generated affiliate attaches.
// Affiliates are identified by their generation index, so a parent is
// always an earlier affiliate and the result is acyclic.
type HierarchyShaper interface {
	// Parent returns the index of the upline for the next affiliate, or -1
	// to start a new root.
	Parent(rng *rand.Rand) int
	// Placed records that affiliate idx was generated at depth (root = 1).
	Placed(idx, depth int)
}

// NewHierarchyShaper returns the shaper for a randomness percentage.
// Shapers are stateful; use a fresh one per run.
func NewHierarchyShaper(randomness int) HierarchyShaper {
	switch {
	case randomness <= 0:
		return NewBalancedShaper(balancedFanout)
	case randomness >= 100:
		return NewUniformShaper()
	}
	return NewBlendShaper(randomness, balancedFanout)
}

type openSlot struct {
	idx       int
	remaining int
}

// BalancedShaper fills a k-ary tree breadth first down to MaxLevels and
// starts a new root when the tree is full.
type BalancedShaper struct {
	fanout int
	open   []openSlot
}

// NewBalancedShaper creates a breadth-first shaper with the given fanout
func NewBalancedShaper(fanout int) *BalancedShaper {
	if fanout < 1 {
		fanout = 1
	}
	return &BalancedShaper{fanout: fanout}
}

// Parent takes the next open slot in FIFO order
func (b *BalancedShaper) Parent(_ *rand.Rand) int {
	if len(b.open) == 0 {
		return -1
	}
	slot := &b.open[0]
	parent := slot.idx
	slot.remaining--
	if slot.remaining == 0 {
		b.open = b.open[1:]
	}
	return parent
}

// Placed opens slots under idx unless it sits at the deepest level
func (b *BalancedShaper) Placed(idx, depth int) {
	if depth < domain.MaxLevels {
		b.open = append(b.open, openSlot{idx: idx, remaining: b.fanout})
	}
}

// UniformShaper attaches each affiliate to a uniformly chosen earlier
// affiliate that is above the deepest level.
type UniformShaper struct {
	open []int
}

// NewUniformShaper creates a uniform random shaper
func NewUniformShaper() *UniformShaper {
	return &UniformShaper{}
}

// Parent picks uniformly among affiliates that can still take a recruit
func (u *UniformShaper) Parent(rng *rand.Rand) int {
	if len(u.open) == 0 {
		return -1
	}
	return u.open[rng.Intn(len(u.open))]
}

// Placed records idx as a candidate parent unless it is at the deepest level
func (u *UniformShaper) Placed(idx, depth int) {
	if depth < domain.MaxLevels {
		u.open = append(u.open, idx)
	}
}

// BlendShaper uses the uniform shaper with probability randomness/100 and
// the balanced shaper otherwise.
type BlendShaper struct {
	randomness int
	balanced   *BalancedShaper
	uniform    *UniformShaper
}

// NewBlendShaper creates a shaper mixing balanced and uniform placement
func NewBlendShaper(randomness, fanout int) *BlendShaper {
	return &BlendShaper{
		randomness: randomness,
		balanced:   NewBalancedShaper(fanout),
		uniform:    NewUniformShaper(),
	}
}

// Parent draws which shaper places the next affiliate
func (s *BlendShaper) Parent(rng *rand.Rand) int {
	if rng.Intn(100) < s.randomness {
		return s.uniform.Parent(rng)
	}
	return s.balanced.Parent(rng)
}

// Placed keeps both shapers aware of every affiliate
func (s *BlendShaper) Placed(idx, depth int) {
	s.balanced.Placed(idx, depth)
	s.uniform.Placed(idx, depth)
}
