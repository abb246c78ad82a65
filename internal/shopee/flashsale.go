package shopee

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const flashSaleListPath = "/api/v2/shop_flash_sale/get_shop_flash_sale_list"

// FlashSale is one shop flash sale as returned by the list endpoint.
type FlashSale struct {
	FlashSaleID      int64 `json:"flash_sale_id"`
	TimeslotID       int64 `json:"timeslot_id"`
	Status           int   `json:"status"`
	StartTime        int64 `json:"start_time"`
	EndTime          int64 `json:"end_time"`
	EnabledItemCount int   `json:"enabled_item_count"`
	ItemCount        int   `json:"item_count"`
	Type             int   `json:"type"`
}

// FlashSalePage is one page of the paginated flash-sale listing plus the
// remote-reported total, which the caller needs to decide whether its
// fetch was exhaustive.
type FlashSalePage struct {
	TotalCount int         `json:"total_count"`
	FlashSales []FlashSale `json:"flash_sale_list"`
}

// GetFlashSalePage fetches one offset page of the shop's flash sales.
func (c *Client) GetFlashSalePage(ctx context.Context, offset, limit int) (*FlashSalePage, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}

	params := url.Values{}
	params.Set("type", "0") // all states
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	raw, err := c.Call(ctx, flashSaleListPath, http.MethodGet, params, nil)
	if err != nil {
		return nil, err
	}

	var page FlashSalePage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("unmarshal flash sale page at offset %d: %w", offset, err)
	}
	return &page, nil
}
