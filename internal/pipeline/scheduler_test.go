package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// fakeBus is an in-process CommandBus delivering published payloads straight
// to subscribers.
type fakeBus struct {
	mu   sync.Mutex
	subs []*fakeBusSub
}

type fakeBusSub struct {
	ch   chan []byte
	once sync.Once
}

func (s *fakeBusSub) close() { s.once.Do(func() { close(s.ch) }) }

func (b *fakeBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.ch <- payload
	}
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	sub := &fakeBusSub{ch: make(chan []byte, 16)}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.close()
	}()
	return sub.ch, nil
}

// closeAll simulates the broker dropping every subscription mid-flight.
func (b *fakeBus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.close()
	}
}

func newTestScheduler(source *fakeOrderSource, regions []int32) (*Scheduler, *memPriceStore, *memJobStore, *fakeBus, *fakeHistorySource) {
	fetcher, prices, history, jobs, _ := newTestFetcher(source)
	cleaner := NewCleaner(history, jobs, nil, 90*24*time.Hour, discardLogger())
	histSrc := &fakeHistorySource{}
	backfiller := NewBackfiller(histSrc, prices, history, regions, 90*24*time.Hour, discardLogger())
	bus := &fakeBus{}

	s := NewScheduler(fetcher, cleaner, backfiller, bus, nil, SchedulerConfig{
		Regions:         regions,
		FetchInterval:   3 * time.Hour,
		CleanupInterval: 24 * time.Hour,
		CommandChannel:  "hubtrader:commands",
	}, discardLogger())
	return s, prices, jobs, bus, histSrc
}

func TestSweepSlotDropsConcurrentTriggers(t *testing.T) {
	source := &fakeOrderSource{
		orders:  map[int32][]domain.RawOrder{testRegion: testOrders()},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s, _, _, _, _ := newTestScheduler(source, []int32{testRegion})

	done := make(chan struct{})
	go func() {
		s.trySweepAll(context.Background())
		close(done)
	}()

	// Wait for the first sweep to reach the order source, then trigger again
	// while it is blocked in flight.
	<-source.started
	s.trySweepAll(context.Background())
	s.trySweepRegion(context.Background(), testRegion, true)

	close(source.release)
	<-done

	if got := source.callCount(); got != 1 {
		t.Fatalf("order source called %d times, want 1 (concurrent triggers must be dropped)", got)
	}
}

func TestFetchRegionSkipsFreshUnlessForced(t *testing.T) {
	source := &fakeOrderSource{orders: map[int32][]domain.RawOrder{testRegion: testOrders()}}
	s, _, _, _, _ := newTestScheduler(source, []int32{testRegion})

	s.trySweepRegion(context.Background(), testRegion, false)
	if got := source.callCount(); got != 1 {
		t.Fatalf("first trigger fetched %d times, want 1", got)
	}

	// The region just completed, so an unforced trigger is a no-op.
	s.trySweepRegion(context.Background(), testRegion, false)
	if got := source.callCount(); got != 1 {
		t.Fatalf("unforced trigger on fresh region fetched (calls=%d)", got)
	}

	s.trySweepRegion(context.Background(), testRegion, true)
	if got := source.callCount(); got != 2 {
		t.Fatalf("forced trigger did not fetch (calls=%d)", got)
	}
}

func TestCommandLoopIgnoresBadPayloads(t *testing.T) {
	source := &fakeOrderSource{orders: map[int32][]domain.RawOrder{testRegion: testOrders()}}
	s, _, jobs, bus, _ := newTestScheduler(source, []int32{testRegion})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		_ = s.runCommandLoop(ctx)
		close(loopDone)
	}()
	time.Sleep(10 * time.Millisecond) // let the subscription attach

	for _, payload := range []string{
		`not json at all`,
		`{"type":"drop-tables"}`,
		`{"type":"fetch-region"}`,
	} {
		if err := bus.Publish(ctx, "hubtrader:commands", []byte(payload)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	valid, err := domain.Command{Kind: domain.CmdFetchRegion, RegionID: testRegion, Force: true}.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := bus.Publish(ctx, "hubtrader:commands", valid); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for source.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("valid command never dispatched")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if got := source.callCount(); got != 1 {
		t.Fatalf("order source called %d times, want 1 (bad payloads must be ignored)", got)
	}
	if failed := jobs.byStatus(domain.JobFailed); len(failed) != 0 {
		t.Fatalf("%d failed jobs from ignored payloads, want 0", len(failed))
	}

	cancel()
	<-loopDone
}

func TestCleanupCommandRunsOutsideSweepSlot(t *testing.T) {
	source := &fakeOrderSource{
		orders:  map[int32][]domain.RawOrder{testRegion: testOrders()},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s, _, _, _, _ := newTestScheduler(source, []int32{testRegion})

	done := make(chan struct{})
	go func() {
		s.trySweepAll(context.Background())
		close(done)
	}()
	<-source.started

	// Cleanup must not contend for the sweep slot.
	finished := make(chan struct{})
	go func() {
		s.dispatch(context.Background(), domain.Command{Kind: domain.CmdCleanup})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup blocked behind the sweep slot")
	}

	close(source.release)
	<-done
}

func TestBackfillCommandContendsForSweepSlot(t *testing.T) {
	source := &fakeOrderSource{
		orders:  map[int32][]domain.RawOrder{testRegion: testOrders()},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s, prices, _, _, histSrc := newTestScheduler(source, []int32{testRegion})

	// Seed an aggregate so a backfill run would reach the history source.
	if err := prices.UpsertBatch(context.Background(), []domain.AggregatedPrice{
		{TypeID: 34, RegionID: testRegion, SellPrice: 4.95, UpdatedAt: time.Now().UTC()},
	}); err != nil {
		t.Fatalf("seed aggregate: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.trySweepAll(context.Background())
		close(done)
	}()
	<-source.started

	// A backfill command arriving mid-sweep is dropped, not queued.
	s.dispatch(context.Background(), domain.Command{Kind: domain.CmdBackfillHistory})
	if got := histSrc.callCount(); got != 0 {
		t.Fatalf("backfill ran while a sweep held the slot (history calls=%d)", got)
	}

	close(source.release)
	<-done

	s.dispatch(context.Background(), domain.Command{Kind: domain.CmdBackfillHistory})
	if histSrc.callCount() == 0 {
		t.Fatal("backfill command never ran with the slot free")
	}
}

func TestCommandLoopFailsWhenSubscriptionCloses(t *testing.T) {
	source := &fakeOrderSource{}
	s, _, _, bus, _ := newTestScheduler(source, []int32{testRegion})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.runCommandLoop(ctx) }()
	time.Sleep(10 * time.Millisecond) // let the subscription attach

	// The broker drops the subscription while the context is still live.
	bus.closeAll()

	select {
	case err := <-errCh:
		if !errors.Is(err, domain.ErrBusClosed) {
			t.Fatalf("err = %v, want ErrBusClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command loop did not return after the subscription closed")
	}
}
