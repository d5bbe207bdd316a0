package esi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// apiOrder mirrors one upstream region order record.
type apiOrder struct {
	OrderID      int64     `json:"order_id"`
	TypeID       int32     `json:"type_id"`
	LocationID   int64     `json:"location_id"`
	Price        float64   `json:"price"`
	VolumeRemain int64     `json:"volume_remain"`
	IsBuyOrder   bool      `json:"is_buy_order"`
	Issued       time.Time `json:"issued"`
}

func (o apiOrder) toDomain() domain.RawOrder {
	return domain.RawOrder{
		OrderID:      o.OrderID,
		TypeID:       o.TypeID,
		LocationID:   o.LocationID,
		Price:        o.Price,
		VolumeRemain: o.VolumeRemain,
		IsBuyOrder:   o.IsBuyOrder,
		Issued:       o.Issued,
	}
}

// FetchRegionOrders pulls the complete order book for one region, walking
// page-numbered pagination until the total page count reported by the first
// response is exhausted. Any page failure aborts the whole fetch: the
// aggregation cycle is all-or-nothing per region.
func (c *Client) FetchRegionOrders(ctx context.Context, regionID int32) ([]domain.RawOrder, error) {
	var orders []domain.RawOrder

	page := 1
	totalPages := 1
	for page <= totalPages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("esi: region %d orders cancelled: %w", regionID, err)
		}

		path := fmt.Sprintf("/markets/%d/orders/?order_type=all&page=%d", regionID, page)
		body, pages, err := c.doGet(ctx, path, "")
		if err != nil {
			return nil, fmt.Errorf("esi: region %d page %d: %w", regionID, page, err)
		}
		totalPages = pages

		var batch []apiOrder
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("esi: decode region %d page %d: %w", regionID, page, err)
		}
		for _, o := range batch {
			orders = append(orders, o.toDomain())
		}

		page++
	}

	return orders, nil
}
