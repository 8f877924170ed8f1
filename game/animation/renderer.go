package animation

// Renderer receives the visible steps of a cycle. Calls arrive on the event
// loop that owns the scheduler and must not block.
type Renderer interface {
	// Slide starts phase one.
	Slide(f Frame)
	// Settle starts phase two.
	Settle(f Frame)
	// Commit reports that f.Table is now the committed table.
	Commit(f Frame)
}

// Renderers fans every call out to each renderer in order.
type Renderers []Renderer

func (rs Renderers) Slide(f Frame) {
	for _, r := range rs {
		r.Slide(f)
	}
}

func (rs Renderers) Settle(f Frame) {
	for _, r := range rs {
		r.Settle(f)
	}
}

func (rs Renderers) Commit(f Frame) {
	for _, r := range rs {
		r.Commit(f)
	}
}
