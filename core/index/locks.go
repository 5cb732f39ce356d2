package index

import "sync"

// paperLocks hands out one mutex per paper id and forgets it once unused.
type paperLocks struct {
	mu    sync.Mutex
	locks map[string]*paperLock
}

type paperLock struct {
	sync.Mutex
	refs int
}

func newPaperLocks() *paperLocks {
	return &paperLocks{locks: map[string]*paperLock{}}
}

// lock blocks until the paper is free and returns the matching unlock.
func (p *paperLocks) lock(paperID string) func() {
	p.mu.Lock()
	l, ok := p.locks[paperID]
	if !ok {
		l = &paperLock{}
		p.locks[paperID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()

	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, paperID)
		}
		p.mu.Unlock()
	}
}
