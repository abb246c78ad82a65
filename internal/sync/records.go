package sync

import (
	"fmt"
	"time"

	"backend/internal/shopee"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// EscrowRow is the stored shape of one order's settlement data.
// (PK, SK) is the natural key; a re-sync replaces the whole row.
type EscrowRow struct {
	PK             string  `dynamodbav:"PK"`
	SK             string  `dynamodbav:"SK"`
	ShopID         int64   `dynamodbav:"ShopID"`
	OrderSN        string  `dynamodbav:"OrderSN"`
	BuyerUserName  string  `dynamodbav:"BuyerUserName,omitempty"`
	EscrowAmount   float64 `dynamodbav:"EscrowAmount"`
	BuyerTotal     float64 `dynamodbav:"BuyerTotal"`
	CommissionFee  float64 `dynamodbav:"CommissionFee"`
	ServiceFee     float64 `dynamodbav:"ServiceFee"`
	TransactionFee float64 `dynamodbav:"TransactionFee"`
	ShippingFee    float64 `dynamodbav:"ShippingFee"`
	Payload        string  `dynamodbav:"Payload,omitempty"`
	SyncedAt       int64   `dynamodbav:"SyncedAt"` // epoch millis
}

// FlashSaleRow is the stored shape of one flash sale.
type FlashSaleRow struct {
	PK               string `dynamodbav:"PK"`
	SK               string `dynamodbav:"SK"`
	ShopID           int64  `dynamodbav:"ShopID"`
	FlashSaleID      int64  `dynamodbav:"FlashSaleID"`
	TimeslotID       int64  `dynamodbav:"TimeslotID"`
	Status           int    `dynamodbav:"Status"`
	StartTime        int64  `dynamodbav:"StartTime"`
	EndTime          int64  `dynamodbav:"EndTime"`
	ItemCount        int    `dynamodbav:"ItemCount"`
	EnabledItemCount int    `dynamodbav:"EnabledItemCount"`
	SyncedAt         int64  `dynamodbav:"SyncedAt"` // epoch millis
}

func escrowRecord(shopID int64, d *shopee.EscrowDetail, at time.Time) (Record, error) {
	row := EscrowRow{
		PK:             fmt.Sprintf("SHOP#%d", shopID),
		SK:             fmt.Sprintf("ESCROW#%s", d.OrderSN),
		ShopID:         shopID,
		OrderSN:        d.OrderSN,
		BuyerUserName:  d.BuyerUserName,
		EscrowAmount:   d.OrderIncome.EscrowAmount,
		BuyerTotal:     d.OrderIncome.BuyerTotalAmount,
		CommissionFee:  d.OrderIncome.CommissionFee,
		ServiceFee:     d.OrderIncome.ServiceFee,
		TransactionFee: d.OrderIncome.SellerTransactionFee,
		ShippingFee:    d.OrderIncome.ActualShippingFee,
		Payload:        string(d.Raw),
		SyncedAt:       at.UnixMilli(),
	}
	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		return Record{}, err
	}
	return Record{Key: d.OrderSN, Item: item}, nil
}

func flashSaleRecord(shopID int64, fs shopee.FlashSale, at time.Time) (Record, error) {
	row := FlashSaleRow{
		PK:               fmt.Sprintf("SHOP#%d", shopID),
		SK:               fmt.Sprintf("FLASH#%d", fs.FlashSaleID),
		ShopID:           shopID,
		FlashSaleID:      fs.FlashSaleID,
		TimeslotID:       fs.TimeslotID,
		Status:           fs.Status,
		StartTime:        fs.StartTime,
		EndTime:          fs.EndTime,
		ItemCount:        fs.ItemCount,
		EnabledItemCount: fs.EnabledItemCount,
		SyncedAt:         at.UnixMilli(),
	}
	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		return Record{}, err
	}
	return Record{Key: fmt.Sprintf("%d", fs.FlashSaleID), Item: item}, nil
}
