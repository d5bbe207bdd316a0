package esi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// apiHistoryDay mirrors one upstream daily market-history record.
type apiHistoryDay struct {
	Date       string  `json:"date"` // YYYY-MM-DD
	Average    float64 `json:"average"`
	Highest    float64 `json:"highest"`
	Lowest     float64 `json:"lowest"`
	Volume     int64   `json:"volume"`
	OrderCount int64   `json:"order_count"`
}

// FetchTypeHistory pulls the daily price history for one (region, type) pair
// and maps each day to a history snapshot: the day's lowest trade price
// stands in for the ask, the highest for the bid, and the traded volume is
// recorded on both sides. Snapshots are stamped at midnight UTC of their day
// so backfilled rows sort before any same-day live snapshot.
func (c *Client) FetchTypeHistory(ctx context.Context, regionID, typeID int32) ([]domain.PriceHistoryPoint, error) {
	path := fmt.Sprintf("/markets/%d/history/?type_id=%d", regionID, typeID)
	body, _, err := c.doGet(ctx, path, "")
	if err != nil {
		return nil, fmt.Errorf("esi: history region %d type %d: %w", regionID, typeID, err)
	}

	var days []apiHistoryDay
	if err := json.Unmarshal(body, &days); err != nil {
		return nil, fmt.Errorf("esi: decode history region %d type %d: %w", regionID, typeID, err)
	}

	points := make([]domain.PriceHistoryPoint, 0, len(days))
	for _, d := range days {
		day, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			return nil, fmt.Errorf("esi: history region %d type %d: bad date %q: %w", regionID, typeID, d.Date, err)
		}
		points = append(points, domain.PriceHistoryPoint{
			TypeID:     typeID,
			RegionID:   regionID,
			BuyPrice:   d.Highest,
			SellPrice:  d.Lowest,
			BuyVolume:  d.Volume,
			SellVolume: d.Volume,
			RecordedAt: day.UTC(),
		})
	}

	return points, nil
}
