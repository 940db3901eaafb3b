package manager

import "sync"

// pendingSet tracks which operator chats have armed /send and are about to
// deliver the announcement payload. In-memory only: after a restart every
// operator has to re-issue /send.
type pendingSet struct {
	mu    sync.Mutex
	chats map[int64]struct{}
}

func newPendingSet() *pendingSet {
	return &pendingSet{chats: make(map[int64]struct{})}
}

func (p *pendingSet) arm(chatID int64) {
	p.mu.Lock()
	p.chats[chatID] = struct{}{}
	p.mu.Unlock()
}

// consume removes the marker and reports whether it was set. The first
// message after /send wins; later messages see false.
func (p *pendingSet) consume(chatID int64) bool {
	p.mu.Lock()
	_, ok := p.chats[chatID]
	if ok {
		delete(p.chats, chatID)
	}
	p.mu.Unlock()
	return ok
}
