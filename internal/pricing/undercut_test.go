package pricing

import (
	"math"
	"testing"

	"github.com/avelhorn/hubtrader/internal/domain"
)

func fixedLookup(aggs ...domain.AggregatedPrice) PriceLookup {
	type key struct {
		typeID   int32
		regionID int32
	}
	m := make(map[key]domain.AggregatedPrice, len(aggs))
	for _, a := range aggs {
		m[key{a.TypeID, a.RegionID}] = a
	}
	return func(typeID, regionID int32) (domain.AggregatedPrice, bool) {
		a, ok := m[key{typeID, regionID}]
		return a, ok
	}
}

func TestCheckOrder_SellUndercut(t *testing.T) {
	order := domain.CharacterOrder{OrderID: 1, TypeID: 34, RegionID: 10000002, Price: 100.0}
	lookup := fixedLookup(domain.AggregatedPrice{TypeID: 34, RegionID: 10000002, SellPrice: 95.0})

	r := CheckOrder(order, lookup)
	if !r.Undercut {
		t.Fatal("sell order at 100 with ask 95 should be undercut")
	}
	if math.Abs(r.SuggestedPrice-94.99) > 1e-9 {
		t.Errorf("SuggestedPrice = %v, want 94.99", r.SuggestedPrice)
	}
	if r.BestPrice != 95.0 {
		t.Errorf("BestPrice = %v, want 95", r.BestPrice)
	}
}

func TestCheckOrder_SellEmptySideNeverUndercuts(t *testing.T) {
	order := domain.CharacterOrder{OrderID: 1, TypeID: 34, RegionID: 10000002, Price: 100.0}
	lookup := fixedLookup(domain.AggregatedPrice{TypeID: 34, RegionID: 10000002, SellPrice: 0})

	r := CheckOrder(order, lookup)
	if r.Undercut {
		t.Error("zero sell aggregate means no competing asks; must not flag undercut")
	}
	if r.SuggestedPrice != 0 {
		t.Errorf("SuggestedPrice = %v, want 0", r.SuggestedPrice)
	}
}

func TestCheckOrder_BuyUndercut(t *testing.T) {
	order := domain.CharacterOrder{OrderID: 2, TypeID: 34, RegionID: 10000002, Price: 50.0, IsBuyOrder: true}
	lookup := fixedLookup(domain.AggregatedPrice{TypeID: 34, RegionID: 10000002, BuyPrice: 55.0})

	r := CheckOrder(order, lookup)
	if !r.Undercut {
		t.Fatal("buy order at 50 with bid 55 should be undercut")
	}
	if math.Abs(r.SuggestedPrice-55.01) > 1e-9 {
		t.Errorf("SuggestedPrice = %v, want 55.01", r.SuggestedPrice)
	}
}

func TestCheckOrder_BuyEqualBidNotUndercut(t *testing.T) {
	order := domain.CharacterOrder{OrderID: 2, TypeID: 34, RegionID: 10000002, Price: 55.0, IsBuyOrder: true}
	lookup := fixedLookup(domain.AggregatedPrice{TypeID: 34, RegionID: 10000002, BuyPrice: 55.0})

	if r := CheckOrder(order, lookup); r.Undercut {
		t.Error("order matching the best bid is not undercut (strict comparison)")
	}
}

func TestCheckOrder_MissingAggregate(t *testing.T) {
	order := domain.CharacterOrder{OrderID: 3, TypeID: 999, RegionID: 10000002, Price: 10.0}

	r := CheckOrder(order, fixedLookup())
	if r.Undercut {
		t.Error("missing aggregate means no competition; must not flag undercut")
	}
	if r.SuggestedPrice != 0 || r.BestPrice != 0 {
		t.Errorf("expected zero prices, got best=%v suggested=%v", r.BestPrice, r.SuggestedPrice)
	}
}

func TestCheckOrder_SuggestionRoundedToTwoDecimals(t *testing.T) {
	order := domain.CharacterOrder{OrderID: 4, TypeID: 34, RegionID: 10000002, Price: 10.0}
	lookup := fixedLookup(domain.AggregatedPrice{TypeID: 34, RegionID: 10000002, SellPrice: 9.955})

	r := CheckOrder(order, lookup)
	if !r.Undercut {
		t.Fatal("expected undercut")
	}
	// 9.955 - 0.01 = 9.945, rounded to 9.94 or 9.95 depending on float
	// representation; either way the result must carry two decimals.
	cents := r.SuggestedPrice * 100
	if math.Abs(cents-math.Round(cents)) > 1e-9 {
		t.Errorf("SuggestedPrice = %v, not rounded to two decimals", r.SuggestedPrice)
	}
}

func TestDetectUndercuts_PerOrderReports(t *testing.T) {
	orders := []domain.CharacterOrder{
		{OrderID: 1, TypeID: 34, RegionID: 10000002, Price: 100.0},
		{OrderID: 2, TypeID: 35, RegionID: 10000002, Price: 50.0, IsBuyOrder: true},
	}
	lookup := fixedLookup(
		domain.AggregatedPrice{TypeID: 34, RegionID: 10000002, SellPrice: 95.0},
		domain.AggregatedPrice{TypeID: 35, RegionID: 10000002, BuyPrice: 48.0},
	)

	reports := DetectUndercuts(orders, lookup)
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if !reports[0].Undercut {
		t.Error("order 1 should be undercut")
	}
	if reports[1].Undercut {
		t.Error("order 2 holds the best bid and should not be undercut")
	}
}
