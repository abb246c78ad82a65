package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

func dataChangedTopicArn() string {
	return os.Getenv("DATA_CHANGED_TOPIC_ARN")
}

type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier handles the two post-run side channels: the data-changed
// signal dependent views subscribe to, and the activity log. Both are
// best-effort and must never fail a run.
type Notifier struct {
	SNS      SNSPublisher
	TopicArn string

	DDB      DynamoAPI
	LogTable string

	wg sync.WaitGroup
}

type dataChangedMsg struct {
	ShopID int64  `json:"shop_id"`
	Table  string `json:"table"`
	At     string `json:"at"`
}

// DataChanged publishes a cache-invalidation signal keyed by shop+table.
// At-most-once: a publish failure is logged and dropped.
func (n *Notifier) DataChanged(ctx context.Context, shopID int64, table string) {
	if n.SNS == nil || strings.TrimSpace(n.TopicArn) == "" {
		return
	}
	b, _ := json.Marshal(dataChangedMsg{
		ShopID: shopID,
		Table:  table,
		At:     time.Now().UTC().Format(time.RFC3339),
	})
	_, err := n.SNS.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.TopicArn),
		Message:  aws.String(string(b)),
	})
	if err != nil {
		fmt.Printf("sync: data-changed publish shop=%d table=%s: %v\n", shopID, table, err)
	}
}

// LogRun appends a run outcome row without blocking the caller. Errors
// and panics are swallowed; the log is advisory.
func (n *Notifier) LogRun(shopID int64, syncType, outcome string, res Result) {
	if n.DDB == nil || strings.TrimSpace(n.LogTable) == "" {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("sync: log run panic: %v\n", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		now := time.Now().UTC()
		_, err := n.DDB.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(n.LogTable),
			Item: map[string]types.AttributeValue{
				"PK":       &types.AttributeValueMemberS{Value: fmt.Sprintf("SHOP#%d", shopID)},
				"SK":       &types.AttributeValueMemberS{Value: fmt.Sprintf("RUN#%s#%s", now.Format(time.RFC3339Nano), uuid.NewString())},
				"SyncType": &types.AttributeValueMemberS{Value: syncType},
				"Outcome":  &types.AttributeValueMemberS{Value: outcome},
				"Total":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", res.Total)},
				"Fetched":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", res.Fetched)},
				"Failed":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", res.Failed)},
				"APICalls": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", res.APICalls)},
				"At":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			},
		})
		if err != nil {
			fmt.Printf("sync: log run shop=%d type=%s: %v\n", shopID, syncType, err)
		}
	}()
}

// Flush waits for in-flight log writes, so a Lambda can drain them before
// the runtime freezes the container.
func (n *Notifier) Flush() {
	n.wg.Wait()
}
