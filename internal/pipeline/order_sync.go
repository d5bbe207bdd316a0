package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/avelhorn/hubtrader/internal/domain"
	"github.com/avelhorn/hubtrader/internal/pricing"
)

// CharacterOrderSource retrieves a character's resting orders using an
// access token.
type CharacterOrderSource interface {
	FetchCharacterOrders(ctx context.Context, characterID int64, token string) ([]domain.CharacterOrder, error)
}

// syncParallelism bounds how many characters are synced at once.
const syncParallelism = 4

// OrderSyncer mirrors each registered character's resting orders and reports
// which of them have been undercut by the latest aggregates. Characters are
// isolated: one failing token or fetch is recorded in that character's
// result and the sweep continues.
type OrderSyncer struct {
	source CharacterOrderSource
	tokens domain.TokenSource
	orders domain.OrderStore
	cache  domain.PriceCache
	logger *slog.Logger
}

// NewOrderSyncer creates an OrderSyncer.
func NewOrderSyncer(
	source CharacterOrderSource,
	tokens domain.TokenSource,
	orders domain.OrderStore,
	cache domain.PriceCache,
	logger *slog.Logger,
) *OrderSyncer {
	return &OrderSyncer{
		source: source,
		tokens: tokens,
		orders: orders,
		cache:  cache,
		logger: logger.With(slog.String("component", "order_sync")),
	}
}

// Sweep syncs every registered character and returns one result per
// character. The returned error covers only the character registry lookup;
// per-character failures live in the results.
func (s *OrderSyncer) Sweep(ctx context.Context) ([]domain.SyncResult, error) {
	characterIDs, err := s.tokens.Characters(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list characters: %w", err)
	}

	var (
		mu      sync.Mutex
		results = make([]domain.SyncResult, 0, len(characterIDs))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(syncParallelism)

	for _, characterID := range characterIDs {
		characterID := characterID
		g.Go(func() error {
			result := s.syncCharacter(ctx, characterID)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	for _, r := range results {
		switch r.Status {
		case domain.SyncOK:
			s.logger.Info("character synced",
				slog.Int64("character_id", r.CharacterID),
				slog.Int("orders", r.Orders),
			)
		case domain.SyncNoToken:
			s.logger.Warn("character has no token",
				slog.Int64("character_id", r.CharacterID),
			)
		case domain.SyncError:
			s.logger.Error("character sync failed",
				slog.Int64("character_id", r.CharacterID),
				slog.String("error", r.Err.Error()),
			)
		}
	}

	return results, nil
}

func (s *OrderSyncer) syncCharacter(ctx context.Context, characterID int64) domain.SyncResult {
	result := domain.SyncResult{CharacterID: characterID}

	token, err := s.tokens.AccessToken(ctx, characterID)
	if err != nil {
		if errors.Is(err, domain.ErrNoToken) {
			result.Status = domain.SyncNoToken
			return result
		}
		result.Status = domain.SyncError
		result.Err = err
		return result
	}

	orders, err := s.source.FetchCharacterOrders(ctx, characterID, token)
	if err != nil {
		result.Status = domain.SyncError
		result.Err = err
		return result
	}

	if err := s.orders.UpsertBatch(ctx, orders); err != nil {
		result.Status = domain.SyncError
		result.Err = err
		return result
	}

	liveIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		liveIDs = append(liveIDs, o.OrderID)
	}
	expired, err := s.orders.ExpireMissing(ctx, characterID, liveIDs)
	if err != nil {
		result.Status = domain.SyncError
		result.Err = err
		return result
	}
	if expired > 0 {
		s.logger.Info("expired stale orders",
			slog.Int64("character_id", characterID),
			slog.Int64("count", expired),
		)
	}

	s.reportUndercuts(ctx, characterID, orders)

	result.Status = domain.SyncOK
	result.Orders = len(orders)
	return result
}

// reportUndercuts checks the character's freshly synced orders against the
// cached aggregates. A cache miss means no competing orders, which is never
// an undercut.
func (s *OrderSyncer) reportUndercuts(ctx context.Context, characterID int64, orders []domain.CharacterOrder) {
	if s.cache == nil {
		return
	}

	lookup := func(typeID, regionID int32) (domain.AggregatedPrice, bool) {
		agg, err := s.cache.Get(ctx, typeID, regionID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("price cache lookup failed",
					slog.Int("type_id", int(typeID)),
					slog.Int("region_id", int(regionID)),
					slog.String("error", err.Error()),
				)
			}
			return domain.AggregatedPrice{}, false
		}
		return agg, true
	}

	for _, report := range pricing.DetectUndercuts(orders, lookup) {
		if !report.Undercut {
			continue
		}
		side := "sell"
		if report.IsBuyOrder {
			side = "buy"
		}
		s.logger.Warn("order undercut",
			slog.Int64("character_id", characterID),
			slog.Int64("order_id", report.OrderID),
			slog.Int("type_id", int(report.TypeID)),
			slog.Int("region_id", int(report.RegionID)),
			slog.String("side", side),
			slog.Float64("price", report.Price),
			slog.Float64("best_price", report.BestPrice),
			slog.Float64("suggested_price", report.SuggestedPrice),
		)
	}
}
