package pricing

import (
	"math"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// priceTick is the smallest currency increment used when suggesting a
// counter-price.
const priceTick = 0.01

// UndercutReport describes how one resting order compares to the current
// aggregate for its (type, region).
type UndercutReport struct {
	OrderID        int64
	TypeID         int32
	RegionID       int32
	IsBuyOrder     bool
	Price          float64
	Undercut       bool
	BestPrice      float64 // competing best on the order's side, 0 when none
	SuggestedPrice float64 // set only when undercut
}

// PriceLookup resolves the latest aggregate for a (type, region) key. The
// second return is false when no aggregate exists, which means no competing
// orders at all.
type PriceLookup func(typeID, regionID int32) (domain.AggregatedPrice, bool)

// CheckOrder decides whether a single resting order is beaten by the current
// aggregate. A buy order is undercut when someone bids strictly higher; a
// sell order when someone asks strictly lower (a zero sell aggregate means
// the side is empty and never undercuts). The suggested counter-price nudges
// one tick past the aggregate and is rounded to two decimals. Read-only:
// nothing is written back into the aggregate.
func CheckOrder(order domain.CharacterOrder, lookup PriceLookup) UndercutReport {
	report := UndercutReport{
		OrderID:    order.OrderID,
		TypeID:     order.TypeID,
		RegionID:   order.RegionID,
		IsBuyOrder: order.IsBuyOrder,
		Price:      order.Price,
	}

	agg, ok := lookup(order.TypeID, order.RegionID)
	if !ok {
		return report
	}

	if order.IsBuyOrder {
		report.BestPrice = agg.BuyPrice
		if agg.BuyPrice > order.Price {
			report.Undercut = true
			report.SuggestedPrice = roundTick(agg.BuyPrice + priceTick)
		}
		return report
	}

	report.BestPrice = agg.SellPrice
	if agg.SellPrice > 0 && agg.SellPrice < order.Price {
		report.Undercut = true
		report.SuggestedPrice = roundTick(agg.SellPrice - priceTick)
	}
	return report
}

// DetectUndercuts runs CheckOrder over a character's active orders.
func DetectUndercuts(orders []domain.CharacterOrder, lookup PriceLookup) []UndercutReport {
	reports := make([]UndercutReport, 0, len(orders))
	for _, o := range orders {
		reports = append(reports, CheckOrder(o, lookup))
	}
	return reports
}

func roundTick(v float64) float64 {
	return math.Round(v*100) / 100
}
