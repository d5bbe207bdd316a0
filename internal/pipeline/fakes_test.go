package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/avelhorn/hubtrader/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOrderSource serves canned region order books and can block until
// released to exercise the sweep slot.
type fakeOrderSource struct {
	mu      sync.Mutex
	orders  map[int32][]domain.RawOrder
	err     error
	calls   int
	started chan struct{} // closed signal per call when set
	release chan struct{} // fetch blocks on this when set
}

func (f *fakeOrderSource) FetchRegionOrders(ctx context.Context, regionID int32) ([]domain.RawOrder, error) {
	f.mu.Lock()
	f.calls++
	started := f.started
	release := f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.orders[regionID], nil
}

func (f *fakeOrderSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memPriceStore struct {
	mu     sync.Mutex
	prices map[[2]int32]domain.AggregatedPrice
}

func newMemPriceStore() *memPriceStore {
	return &memPriceStore{prices: make(map[[2]int32]domain.AggregatedPrice)}
}

func (s *memPriceStore) UpsertBatch(_ context.Context, prices []domain.AggregatedPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range prices {
		s.prices[[2]int32{p.TypeID, p.RegionID}] = p
	}
	return nil
}

func (s *memPriceStore) Get(_ context.Context, typeID, regionID int32) (domain.AggregatedPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[[2]int32{typeID, regionID}]
	if !ok {
		return domain.AggregatedPrice{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memPriceStore) ListByRegion(_ context.Context, regionID int32) ([]domain.AggregatedPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AggregatedPrice
	for _, p := range s.prices {
		if p.RegionID == regionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memPriceStore) ListTypeIDs(_ context.Context, regionID int32) ([]int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int32
	for key := range s.prices {
		if key[1] == regionID {
			out = append(out, key[0])
		}
	}
	return out, nil
}

type memHistoryStore struct {
	mu     sync.Mutex
	points []domain.PriceHistoryPoint
}

func (s *memHistoryStore) AppendBatch(_ context.Context, points []domain.PriceHistoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, points...)
	return nil
}

func (s *memHistoryStore) ListRange(_ context.Context, typeID, regionID int32, since, until time.Time) ([]domain.PriceHistoryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PriceHistoryPoint
	for _, p := range s.points {
		if p.TypeID == typeID && p.RegionID == regionID && !p.RecordedAt.Before(since) && p.RecordedAt.Before(until) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memHistoryStore) ListBefore(_ context.Context, cutoff time.Time) ([]domain.PriceHistoryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PriceHistoryPoint
	for _, p := range s.points {
		if p.RecordedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memHistoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.points[:0]
	var deleted int64
	for _, p := range s.points {
		if p.RecordedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	s.points = kept
	return deleted, nil
}

func (s *memHistoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.FetchJob
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]domain.FetchJob)}
}

func (s *memJobStore) Create(_ context.Context, job domain.FetchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *memJobStore) MarkRunning(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	job.Status = domain.JobRunning
	s.jobs[id] = job
	return nil
}

func (s *memJobStore) MarkCompleted(_ context.Context, id string, itemsCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	job.Status = domain.JobCompleted
	job.ItemsCount = itemsCount
	now := time.Now().UTC()
	job.CompletedAt = &now
	s.jobs[id] = job
	return nil
}

func (s *memJobStore) MarkFailed(_ context.Context, id string, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	job.Status = domain.JobFailed
	job.ErrorMessage = errorMessage
	now := time.Now().UTC()
	job.CompletedAt = &now
	s.jobs[id] = job
	return nil
}

func (s *memJobStore) LastCompleted(_ context.Context, regionID int32) (domain.FetchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best domain.FetchJob
	found := false
	for _, job := range s.jobs {
		if job.RegionID != regionID || job.Status != domain.JobCompleted {
			continue
		}
		if !found || job.CompletedAt.After(*best.CompletedAt) {
			best = job
			found = true
		}
	}
	if !found {
		return domain.FetchJob{}, domain.ErrNotFound
	}
	return best, nil
}

func (s *memJobStore) ListRecent(_ context.Context, limit int) ([]domain.FetchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.FetchJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memJobStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memJobStore) byStatus(status domain.JobStatus) []domain.FetchJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FetchJob
	for _, job := range s.jobs {
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out
}

type memPriceCache struct {
	mu     sync.Mutex
	prices map[[2]int32]domain.AggregatedPrice
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{prices: make(map[[2]int32]domain.AggregatedPrice)}
}

func (c *memPriceCache) SetBatch(_ context.Context, prices []domain.AggregatedPrice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range prices {
		c.prices[[2]int32{p.TypeID, p.RegionID}] = p
	}
	return nil
}

func (c *memPriceCache) Get(_ context.Context, typeID, regionID int32) (domain.AggregatedPrice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[[2]int32{typeID, regionID}]
	if !ok {
		return domain.AggregatedPrice{}, domain.ErrNotFound
	}
	return p, nil
}

type memOrderStore struct {
	mu     sync.Mutex
	orders map[int64]domain.CharacterOrder
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[int64]domain.CharacterOrder)}
}

func (s *memOrderStore) UpsertBatch(_ context.Context, orders []domain.CharacterOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range orders {
		s.orders[o.OrderID] = o
	}
	return nil
}

func (s *memOrderStore) ExpireMissing(_ context.Context, characterID int64, liveOrderIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := make(map[int64]bool, len(liveOrderIDs))
	for _, id := range liveOrderIDs {
		live[id] = true
	}
	var expired int64
	for id, o := range s.orders {
		if o.CharacterID != characterID || o.State != domain.OrderActive || live[id] {
			continue
		}
		o.State = domain.OrderExpired
		s.orders[id] = o
		expired++
	}
	return expired, nil
}

func (s *memOrderStore) ListActive(_ context.Context, characterID int64) ([]domain.CharacterOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CharacterOrder
	for _, o := range s.orders {
		if o.CharacterID == characterID && o.State == domain.OrderActive {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memOrderStore) get(orderID int64) (domain.CharacterOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	return o, ok
}

// fakeTokenSource maps characters to tokens; a missing entry means no token.
type fakeTokenSource struct {
	characters []int64
	tokens     map[int64]string
}

func (f *fakeTokenSource) Characters(_ context.Context) ([]int64, error) {
	return f.characters, nil
}

func (f *fakeTokenSource) AccessToken(_ context.Context, characterID int64) (string, error) {
	token, ok := f.tokens[characterID]
	if !ok {
		return "", domain.ErrNoToken
	}
	return token, nil
}

// fakeCharacterSource serves canned character orders keyed by character id.
type fakeCharacterSource struct {
	orders map[int64][]domain.CharacterOrder
	errs   map[int64]error
}

func (f *fakeCharacterSource) FetchCharacterOrders(_ context.Context, characterID int64, _ string) ([]domain.CharacterOrder, error) {
	if err := f.errs[characterID]; err != nil {
		return nil, err
	}
	return f.orders[characterID], nil
}
