package esi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// apiCharacterOrder mirrors one upstream authenticated character order.
type apiCharacterOrder struct {
	OrderID      int64     `json:"order_id"`
	TypeID       int32     `json:"type_id"`
	RegionID     int32     `json:"region_id"`
	LocationID   int64     `json:"location_id"`
	IsBuyOrder   bool      `json:"is_buy_order"`
	Price        float64   `json:"price"`
	VolumeTotal  int64     `json:"volume_total"`
	VolumeRemain int64     `json:"volume_remain"`
	Issued       time.Time `json:"issued"`
}

// FetchCharacterOrders pulls the character's resting orders using the given
// access token. Returned orders are marked active; the caller decides which
// previously mirrored orders to expire.
func (c *Client) FetchCharacterOrders(ctx context.Context, characterID int64, token string) ([]domain.CharacterOrder, error) {
	path := fmt.Sprintf("/characters/%d/orders/", characterID)
	body, _, err := c.doGet(ctx, path, token)
	if err != nil {
		return nil, fmt.Errorf("esi: character %d orders: %w", characterID, err)
	}

	var batch []apiCharacterOrder
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("esi: decode character %d orders: %w", characterID, err)
	}

	orders := make([]domain.CharacterOrder, 0, len(batch))
	for _, o := range batch {
		orders = append(orders, domain.CharacterOrder{
			OrderID:      o.OrderID,
			CharacterID:  characterID,
			TypeID:       o.TypeID,
			RegionID:     o.RegionID,
			LocationID:   o.LocationID,
			IsBuyOrder:   o.IsBuyOrder,
			Price:        o.Price,
			VolumeTotal:  o.VolumeTotal,
			VolumeRemain: o.VolumeRemain,
			Issued:       o.Issued,
			State:        domain.OrderActive,
		})
	}

	return orders, nil
}
