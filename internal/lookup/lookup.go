// Package lookup adapts the backend search for selection widgets. It
// guards against out-of-order responses: overlapping queries are keyed
// by issue order within their kind, and only a response newer than the
// last applied one for that kind may replace its candidate list.
// Identical in-flight queries are collapsed into a single backend call.
package lookup

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/order-composer/internal/domain/catalog"
	"github.com/xenking/order-composer/pkg/notify"
)

// Adapter owns the current candidate list for one selection widget
// kind. Only selection widgets consume it; the cart and calculator
// never call the backend directly.
type Adapter struct {
	searcher catalog.Searcher
	notices  *notify.Sink
	lg       *zap.Logger
	group    singleflight.Group

	mu      sync.Mutex
	issued  map[catalog.Kind]uint64
	applied map[catalog.Kind]uint64
	results map[catalog.Kind][]catalog.Candidate
}

// New creates an adapter over the given searcher. Lookup failures are
// reported through the sink; they never escape to the caller as faults.
func New(searcher catalog.Searcher, notices *notify.Sink, lg *zap.Logger) *Adapter {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Adapter{
		searcher: searcher,
		notices:  notices,
		lg:       lg,
		issued:   make(map[catalog.Kind]uint64),
		applied:  make(map[catalog.Kind]uint64),
		results:  make(map[catalog.Kind][]catalog.Candidate),
	}
}

// Search issues a query and returns the current candidate list for the
// kind. If this response resolves after a later-issued query has
// already been applied, it is silently discarded and the newer list is
// returned. On failure the list for the kind is emptied and a non-fatal
// error notice is emitted.
func (a *Adapter) Search(ctx context.Context, kind catalog.Kind, query string) []catalog.Candidate {
	seq := a.nextSeq(kind)

	key := fmt.Sprintf("%s\x00%s", kind, query)
	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		return a.searcher.Search(ctx, catalog.Query{
			Kind:   kind,
			Search: query,
			Page:   1,
		})
	})

	if err != nil {
		a.lg.Warn("lookup failed",
			zap.String("kind", string(kind)), zap.String("query", query), zap.Error(err))
		if a.apply(seq, kind, nil) && a.notices != nil {
			a.notices.Open(notify.StatusError, "search failed, please retry")
		}
		return a.Results(kind)
	}

	candidates, _ := v.([]catalog.Candidate)
	if !a.apply(seq, kind, candidates) {
		a.lg.Debug("dropping stale lookup response",
			zap.String("kind", string(kind)), zap.String("query", query), zap.Uint64("seq", seq))
	}
	return a.Results(kind)
}

// Results returns the last applied candidate list for the kind.
func (a *Adapter) Results(kind catalog.Kind) []catalog.Candidate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]catalog.Candidate(nil), a.results[kind]...)
}

// Reset drops all candidate lists, used when the composition session is
// discarded.
func (a *Adapter) Reset() {
	a.mu.Lock()
	a.results = make(map[catalog.Kind][]catalog.Candidate)
	a.mu.Unlock()
}

func (a *Adapter) nextSeq(kind catalog.Kind) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.issued[kind]++
	return a.issued[kind]
}

// apply installs the response iff it is newer than the last applied one
// for its kind. "Newer" is issue order, not resolution order; each
// selection widget's list is ordered independently.
func (a *Adapter) apply(seq uint64, kind catalog.Kind, candidates []catalog.Candidate) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if seq <= a.applied[kind] {
		return false
	}
	a.applied[kind] = seq
	a.results[kind] = candidates
	return true
}
