package stories

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"hnproxy/internal/hn"
)

// fakeUpstream serves items from memory and records call concurrency.
type fakeUpstream struct {
	mu     sync.Mutex
	ids    []int
	idsErr error
	items  map[int]hn.Item
	fail   map[int]bool
	delay  func(id int) time.Duration

	idCalls   atomic.Int32
	itemCalls atomic.Int32
	perItem   sync.Map // id -> *atomic.Int32
	inFlight  atomic.Int32
	maxSeen   atomic.Int32
}

func newFakeUpstream(items ...hn.Item) *fakeUpstream {
	f := &fakeUpstream{items: map[int]hn.Item{}, fail: map[int]bool{}}
	for _, it := range items {
		f.ids = append(f.ids, it.ID)
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeUpstream) NewStoryIDs(ctx context.Context) ([]int, error) {
	f.idCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idsErr != nil {
		return nil, f.idsErr
	}
	return append([]int(nil), f.ids...), nil
}

func (f *fakeUpstream) Item(ctx context.Context, id int) (hn.Item, error) {
	f.itemCalls.Add(1)
	c, _ := f.perItem.LoadOrStore(id, new(atomic.Int32))
	c.(*atomic.Int32).Add(1)

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.delay != nil {
		select {
		case <-time.After(f.delay(id)):
		case <-ctx.Done():
			return hn.Item{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return hn.Item{}, errors.New("upstream unavailable")
	}
	it, ok := f.items[id]
	if !ok {
		return hn.Item{}, hn.ErrNotFound
	}
	return it, nil
}

func (f *fakeUpstream) callsFor(id int) int32 {
	c, ok := f.perItem.Load(id)
	if !ok {
		return 0
	}
	return c.(*atomic.Int32).Load()
}

func story(id int, title string) hn.Item {
	return hn.Item{ID: id, Title: title, By: "user", Type: "story", Time: 1700000000}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
