package rules

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/haukened/rr-block/internal/filter/domain"
)

// store implements Repository. Readers load the active RuleSet through an
// atomic pointer; reloads are serialized so versions stay monotonic.
type store struct {
	reloadMu sync.Mutex
	current  atomic.Pointer[domain.RuleSet]
	version  uint64
	loader   *Loader
	sources  Sources
}

// NewStore returns a Repository holding the empty RuleSet until the first Reload.
func NewStore(loader *Loader, sources Sources) Repository {
	s := &store{loader: loader, sources: sources}
	s.current.Store(domain.EmptyRuleSet())
	return s
}

func (s *store) Current() *domain.RuleSet {
	return s.current.Load()
}

func (s *store) Sources() Sources { return s.sources }

func (s *store) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next := s.version + 1
	rs, err := s.loader.Load(ctx, s.sources, next)
	s.version = next
	s.current.Store(rs)
	return err
}

var _ Repository = (*store)(nil)
