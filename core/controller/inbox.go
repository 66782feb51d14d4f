package controller

import (
	"sync"

	"github.com/resilia-grid/neurogrid/core/model"
)

// inbox holds inputs that arrive between cycle boundaries. Writers are
// transport callbacks; the single reader is the cycle. Each slot keeps the
// newest value only.
type inbox struct {
	mu     sync.Mutex
	signal *model.GridSignal
	delta  *model.ModelDelta
}

func (b *inbox) putSignal(sig model.GridSignal) {
	b.mu.Lock()
	b.signal = &sig
	b.mu.Unlock()
}

func (b *inbox) takeSignal() *model.GridSignal {
	b.mu.Lock()
	defer b.mu.Unlock()
	sig := b.signal
	b.signal = nil
	return sig
}

func (b *inbox) putModel(d model.ModelDelta) {
	b.mu.Lock()
	b.delta = &d
	b.mu.Unlock()
}

func (b *inbox) takeModel() (model.ModelDelta, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.delta == nil {
		return model.ModelDelta{}, false
	}
	d := *b.delta
	b.delta = nil
	return d, true
}
