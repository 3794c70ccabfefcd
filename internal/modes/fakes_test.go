package modes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sidepot/settler/internal/domain"
	"github.com/sidepot/settler/internal/resolution"
)

// fakeWagerStore mimics the conditional-update semantics of the real store:
// SetWinner and Wash mutate only rows still in pending status.
type fakeWagerStore struct {
	mu            sync.Mutex
	wagers        map[string]domain.Wager
	failSetWinner int // upcoming SetWinner calls to fail with a store error
}

func newFakeWagerStore(ws ...domain.Wager) *fakeWagerStore {
	s := &fakeWagerStore{wagers: make(map[string]domain.Wager)}
	for _, w := range ws {
		s.wagers[w.ID] = w
	}
	return s
}

func (s *fakeWagerStore) Get(_ context.Context, id string) (domain.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wagers[id]
	if !ok {
		return domain.Wager{}, domain.ErrNotFound
	}
	return w, nil
}

func (s *fakeWagerStore) ListPending(_ context.Context, modeKey string, league domain.League, f domain.PendingFilter) ([]domain.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Wager
	for _, w := range s.wagers {
		if w.Status != domain.WagerPending || w.ModeKey != modeKey || w.League != league {
			continue
		}
		if f.GameID != "" && w.GameID != f.GameID {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *fakeWagerStore) SetWinner(_ context.Context, id, choice string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSetWinner > 0 {
		s.failSetWinner--
		return false, errors.New("store unavailable")
	}
	w, ok := s.wagers[id]
	if !ok || w.Status != domain.WagerPending || w.WinningChoice != nil {
		return false, nil
	}
	w.Status = domain.WagerResolved
	w.WinningChoice = &choice
	w.ResolutionTime = &at
	s.wagers[id] = w
	return true, nil
}

func (s *fakeWagerStore) Wash(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wagers[id]
	if !ok || w.Status != domain.WagerPending {
		return false, nil
	}
	w.Status = domain.WagerWashed
	w.WinningChoice = nil
	w.ResolutionTime = &at
	s.wagers[id] = w
	return true, nil
}

func (s *fakeWagerStore) get(id string) domain.Wager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wagers[id]
}

// fakeBaselineCache round-trips values through JSON like the Redis cache.
type fakeBaselineCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
}

func newFakeBaselineCache() *fakeBaselineCache {
	return &fakeBaselineCache{data: make(map[string][]byte)}
}

func (c *fakeBaselineCache) Get(_ context.Context, wagerID string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return false, errors.New("cache unavailable")
	}
	b, ok := c.data[wagerID]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *fakeBaselineCache) PutNX(_ context.Context, wagerID string, v any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[wagerID]; exists {
		return false, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	c.data[wagerID] = b
	return true, nil
}

func (c *fakeBaselineCache) Put(_ context.Context, wagerID string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[wagerID] = b
	return nil
}

func (c *fakeBaselineCache) Delete(_ context.Context, wagerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, wagerID)
	return nil
}

func (c *fakeBaselineCache) has(wagerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[wagerID]
	return ok
}

// fakeGameSource serves documents from memory.
type fakeGameSource struct {
	mu   sync.Mutex
	docs map[string]domain.GameDoc
}

func newFakeGameSource() *fakeGameSource {
	return &fakeGameSource{docs: make(map[string]domain.GameDoc)}
}

func (s *fakeGameSource) Game(_ context.Context, _ domain.League, gameID string) (domain.GameDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[gameID]
	if !ok {
		return domain.GameDoc{}, domain.ErrNotFound
	}
	return doc, nil
}

func (s *fakeGameSource) put(doc domain.GameDoc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.GameID] = doc
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
}

func (h *fakeHistory) Append(_ context.Context, e domain.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return nil
}

func (h *fakeHistory) find(event string) (domain.HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entries {
		if e.EventType == event {
			return e, true
		}
	}
	return domain.HistoryEntry{}, false
}

func (h *fakeHistory) count(event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.entries {
		if e.EventType == event {
			n++
		}
	}
	return n
}

// harness bundles the fakes with a direct-mode resolver.
type harness struct {
	store     *fakeWagerStore
	history   *fakeHistory
	baselines *fakeBaselineCache
	games     *fakeGameSource
	resolver  *resolution.Resolver
}

func newHarness(ws ...domain.Wager) *harness {
	h := &harness{
		store:     newFakeWagerStore(ws...),
		history:   &fakeHistory{},
		baselines: newFakeBaselineCache(),
		games:     newFakeGameSource(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.resolver = resolution.New(h.store, h.history, nil, nil, resolution.Direct, logger)
	return h
}

func (h *harness) statLine() *StatLine {
	return NewStatLine(domain.LeagueNFL, h.store, h.history, h.baselines, h.games, h.resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (h *harness) raceTo() *RaceTo {
	return NewRaceTo(domain.LeagueNFL, h.store, h.history, h.baselines, h.games, h.resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))
}
