package session

// RollingBuffer is a fixed-length window of recent angles, oldest first.
type RollingBuffer struct {
	slots []int
}

func NewRollingBuffer(size int) *RollingBuffer {
	if size < 1 {
		size = 1
	}
	return &RollingBuffer{slots: make([]int, size)}
}

// Push drops the oldest slot and appends angle.
func (b *RollingBuffer) Push(angle int) {
	copy(b.slots, b.slots[1:])
	b.slots[len(b.slots)-1] = angle
}

// Reset zeroes every slot.
func (b *RollingBuffer) Reset() {
	clear(b.slots)
}

func (b *RollingBuffer) Len() int { return len(b.slots) }

// Values returns a copy of the slots, oldest first.
func (b *RollingBuffer) Values() []int {
	out := make([]int, len(b.slots))
	copy(out, b.slots)
	return out
}
