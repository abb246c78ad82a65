package shopee

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const escrowDetailPath = "/api/v2/payment/get_escrow_detail"

// OrderIncome is the fee breakdown Shopee reports for a settled order.
type OrderIncome struct {
	EscrowAmount         float64 `json:"escrow_amount"`
	BuyerTotalAmount     float64 `json:"buyer_total_amount"`
	OriginalPrice        float64 `json:"original_price"`
	SellerDiscount       float64 `json:"seller_discount"`
	ShopeeDiscount       float64 `json:"shopee_discount"`
	CommissionFee        float64 `json:"commission_fee"`
	ServiceFee           float64 `json:"service_fee"`
	SellerTransactionFee float64 `json:"seller_transaction_fee"`
	ActualShippingFee    float64 `json:"actual_shipping_fee"`
	VoucherFromSeller    float64 `json:"voucher_from_seller"`
	VoucherFromShopee    float64 `json:"voucher_from_shopee"`
}

// EscrowDetail is the per-order settlement payload.
type EscrowDetail struct {
	OrderSN       string      `json:"order_sn"`
	BuyerUserName string      `json:"buyer_user_name"`
	OrderIncome   OrderIncome `json:"order_income"`

	// Raw keeps the full remote payload so the stored row loses nothing
	// when Shopee adds fields.
	Raw json.RawMessage `json:"-"`
}

// GetEscrowDetail fetches settlement data for one order. A remote business
// error (order not eligible yet, wrong state) comes back as *RemoteError
// with a code; callers treat that as skip-this-record, not a run failure.
func (c *Client) GetEscrowDetail(ctx context.Context, orderSN string) (*EscrowDetail, error) {
	params := url.Values{}
	params.Set("order_sn", orderSN)

	raw, err := c.Call(ctx, escrowDetailPath, http.MethodGet, params, nil)
	if err != nil {
		return nil, err
	}

	var d EscrowDetail
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("unmarshal escrow detail for %s: %w", orderSN, err)
	}
	if d.OrderSN == "" {
		d.OrderSN = orderSN
	}
	d.Raw = raw
	return &d, nil
}
