package etl

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"backend/internal/db"
	"backend/internal/tenancy"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

// FinanceMetricsRow matches the Athena table columns for the daily
// escrow roll-up.
type FinanceMetricsRow struct {
	ShopID        string  `parquet:"name=shop_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	MetricDate    string  `parquet:"name=metric_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"` // YYYY-MM-DD
	EscrowAmount  float64 `parquet:"name=escrow_amount, type=DOUBLE"`
	BuyerTotal    float64 `parquet:"name=buyer_total, type=DOUBLE"`
	CommissionFee float64 `parquet:"name=commission_fee, type=DOUBLE"`
	ServiceFee    float64 `parquet:"name=service_fee, type=DOUBLE"`
	ShippingFee   float64 `parquet:"name=shipping_fee, type=DOUBLE"`
	OrderCount    int64   `parquet:"name=order_count, type=INT64"`
}

type FinanceMetricsETL struct {
	ddb *dynamodb.Client
	s3  *s3.Client
}

func NewFinanceMetricsETL(cfg aws.Config) *FinanceMetricsETL {
	return &FinanceMetricsETL{
		ddb: dynamodb.NewFromConfig(cfg),
		s3:  s3.NewFromConfig(cfg),
	}
}

// Handle is triggered by EventBridge schedule.
//
// Behavior:
//   - Discover connected shops from SHOPS_TABLE
//   - For each shop and each day in the backfill window, aggregate escrow rows
//   - Write one Parquet row per (shop, dt) under:
//     finance_metrics/dt=YYYY-MM-DD/shop_id=<shop>/part-<rand>.parquet
//
// Env:
// - SHOPS_TABLE, ESCROW_TABLE, ANALYTICS_BUCKET (required)
// - FINANCE_METRICS_PREFIX (default "finance_metrics/")
// - ETL_TIMEZONE (default "Asia/Ho_Chi_Minh")
// - ETL_DAYS_BACK (default "1")
func (h *FinanceMetricsETL) Handle(ctx context.Context, _ events.CloudWatchEvent) (map[string]any, error) {
	escrowTable := strings.TrimSpace(db.EscrowTableName())
	bucket := strings.TrimSpace(os.Getenv("ANALYTICS_BUCKET"))
	prefix := strings.TrimSpace(os.Getenv("FINANCE_METRICS_PREFIX"))
	if prefix == "" {
		prefix = "finance_metrics/"
	}

	tzName := strings.TrimSpace(os.Getenv("ETL_TIMEZONE"))
	if tzName == "" {
		tzName = "Asia/Ho_Chi_Minh"
	}

	daysBack := 1
	if v := strings.TrimSpace(os.Getenv("ETL_DAYS_BACK")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 90 {
			daysBack = n
		}
	}

	if escrowTable == "" {
		return nil, fmt.Errorf("missing env ESCROW_TABLE")
	}
	if bucket == "" {
		return nil, fmt.Errorf("missing env ANALYTICS_BUCKET")
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", tzName, err)
	}

	shops, err := tenancy.AllConnectedShops(ctx, h.ddb)
	if err != nil {
		return nil, err
	}
	if len(shops) == 0 {
		return map[string]any{"ok": true, "written": 0, "reason": "no shops found"}, nil
	}

	now := time.Now().In(loc)
	written := 0
	orders := 0

	for i := 0; i < daysBack; i++ {
		day := now.AddDate(0, 0, -i)
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		dtStr := dayStart.Format("2006-01-02")

		for _, shop := range shops {
			row, err := h.sumEscrowForDay(ctx, escrowTable, shop, dayStart)
			if err != nil {
				return nil, fmt.Errorf("sum escrow for shop=%d dt=%s: %w", shop, dtStr, err)
			}
			row.MetricDate = dtStr

			key := fmt.Sprintf("%sdt=%s/shop_id=%d/part-%s.parquet",
				ensureTrailingSlash(prefix),
				dtStr,
				shop,
				randHex(8),
			)

			if err := h.writeOneParquetRowToS3(ctx, bucket, key, row); err != nil {
				return nil, fmt.Errorf("write parquet for shop=%d dt=%s: %w", shop, dtStr, err)
			}

			written++
			orders += int(row.OrderCount)
		}
	}

	return map[string]any{
		"ok":          true,
		"shops":       len(shops),
		"days_back":   daysBack,
		"written":     written,
		"order_count": orders,
		"bucket":      bucket,
		"prefix":      prefix,
	}, nil
}

// sumEscrowForDay queries the shop's escrow rows whose SyncedAt (epoch
// millis) falls inside the given local day and aggregates the amounts.
func (h *FinanceMetricsETL) sumEscrowForDay(ctx context.Context, table string, shopID int64, dayStart time.Time) (FinanceMetricsRow, error) {
	row := FinanceMetricsRow{ShopID: strconv.FormatInt(shopID, 10)}

	from := dayStart.UnixMilli()
	to := dayStart.AddDate(0, 0, 1).UnixMilli()

	in := &dynamodb.QueryInput{
		TableName:              aws.String(table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :esc)"),
		FilterExpression:       aws.String("SyncedAt >= :from AND SyncedAt < :to"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":   &ddbtypes.AttributeValueMemberS{Value: fmt.Sprintf("SHOP#%d", shopID)},
			":esc":  &ddbtypes.AttributeValueMemberS{Value: "ESCROW#"},
			":from": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(from, 10)},
			":to":   &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(to, 10)},
		},
	}

	for {
		out, err := h.ddb.Query(ctx, in)
		if err != nil {
			return row, fmt.Errorf("query escrow table: %w", err)
		}

		for _, it := range out.Items {
			row.EscrowAmount += numAttr(it, "EscrowAmount")
			row.BuyerTotal += numAttr(it, "BuyerTotal")
			row.CommissionFee += numAttr(it, "CommissionFee")
			row.ServiceFee += numAttr(it, "ServiceFee")
			row.ShippingFee += numAttr(it, "ShippingFee")
			row.OrderCount++
		}

		if out.LastEvaluatedKey == nil || len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	return row, nil
}

func numAttr(item map[string]ddbtypes.AttributeValue, name string) float64 {
	av, ok := item[name]
	if !ok {
		return 0
	}
	nv, ok := av.(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(nv.Value, 64)
	if err != nil {
		return 0
	}
	return f
}

func (h *FinanceMetricsETL) writeOneParquetRowToS3(ctx context.Context, bucket, key string, row FinanceMetricsRow) error {
	tmpDir := os.TempDir()
	localPath := filepath.Join(tmpDir, "finance_metrics_"+randHex(8)+".parquet")

	fw, err := local.NewLocalFileWriter(localPath)
	if err != nil {
		return fmt.Errorf("parquet file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(FinanceMetricsRow), 1)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = 0 // no snappy

	if err := pw.Write(row); err != nil {
		_ = pw.WriteStop()
		_ = fw.Close()
		return fmt.Errorf("parquet write row: %w", err)
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read parquet tmp: %w", err)
	}
	defer func() { _ = os.Remove(localPath) }()

	_, err = h.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		ACL:         s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("s3 putobject failed: %w", err)
	}
	return nil
}

func ensureTrailingSlash(s string) string {
	if s == "" {
		return ""
	}
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
