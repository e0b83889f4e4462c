package trader

import (
	"sync"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Registry tracks open positions. It is mutated by two independent parties
// (the spawner inserts, each monitor deletes itself on exit), so all access
// is lock-guarded.
type Registry struct {
	mu        sync.Mutex
	positions map[string]*model.Position
	wg        sync.WaitGroup
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{positions: make(map[string]*model.Position)}
}

// Add inserts a position keyed by its trade id.
func (r *Registry) Add(p *model.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[p.TradeID] = p
}

// Remove deletes a position by trade id.
func (r *Registry) Remove(tradeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions, tradeID)
}

// Get returns the position for a trade id, if still open.
func (r *Registry) Get(tradeID string) (*model.Position, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.positions[tradeID]
	return p, ok
}

// Len returns the number of open positions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.positions)
}

// Wait blocks until every monitor goroutine has exited. Used at shutdown
// before closing gateway connections.
func (r *Registry) Wait() {
	r.wg.Wait()
}
