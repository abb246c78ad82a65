package shopee

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"backend/internal/db"
	"backend/internal/security"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ShopItem mirrors the shops table structure.
type ShopItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	ShopID         int64  `dynamodbav:"ShopID"`
	ShopName       string `dynamodbav:"ShopName,omitempty"`
	Region         string `dynamodbav:"Region,omitempty"`
	AccessTokenEnc string `dynamodbav:"AccessTokenEnc"`
	TokenExpireAt  string `dynamodbav:"TokenExpireAt,omitempty"`
	ConnectedAt    string `dynamodbav:"ConnectedAt,omitempty"`
}

type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type ShopGetter interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// CredentialProvider assembles signing credentials for one shop: the
// partner id/key from Parameter Store (cached per container) plus the
// shop's decrypted access token from the shops table.
type CredentialProvider struct {
	DDB ShopGetter
	SSM SSMClient

	mu         sync.Mutex
	partnerID  int64
	partnerKey string
}

func partnerIDParam() string {
	if v := strings.TrimSpace(os.Getenv("PARTNER_ID_PARAM")); v != "" {
		return v
	}
	return "/shopee/partner_id"
}

func partnerKeyParam() string {
	if v := strings.TrimSpace(os.Getenv("PARTNER_KEY_PARAM")); v != "" {
		return v
	}
	return "/shopee/partner_key"
}

func (p *CredentialProvider) partnerCreds(ctx context.Context) (int64, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.partnerID != 0 && p.partnerKey != "" {
		return p.partnerID, p.partnerKey, nil
	}

	idOut, err := p.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(partnerIDParam()),
	})
	if err != nil {
		return 0, "", fmt.Errorf("ssm get %s: %w", partnerIDParam(), err)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(aws.ToString(idOut.Parameter.Value)), 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid partner id parameter: %w", err)
	}

	keyOut, err := p.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(partnerKeyParam()),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return 0, "", fmt.Errorf("ssm get %s: %w", partnerKeyParam(), err)
	}
	key := strings.TrimSpace(aws.ToString(keyOut.Parameter.Value))
	if key == "" {
		return 0, "", fmt.Errorf("empty partner key parameter")
	}

	p.partnerID, p.partnerKey = id, key
	return id, key, nil
}

// GetCredentials loads and decrypts everything needed to sign calls for
// shopID. Returns ErrShopNotConnected when no shop record exists.
func (p *CredentialProvider) GetCredentials(ctx context.Context, shopID int64) (Credentials, error) {
	tbl := strings.TrimSpace(db.ShopsTableName())
	if tbl == "" {
		return Credentials{}, fmt.Errorf("SHOPS_TABLE not set")
	}

	partnerID, partnerKey, err := p.partnerCreds(ctx)
	if err != nil {
		return Credentials{}, err
	}

	out, err := p.DDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(tbl),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SHOP#%d", shopID)},
			"SK": &types.AttributeValueMemberS{Value: "META"},
		},
	})
	if err != nil {
		return Credentials{}, err
	}
	if out.Item == nil {
		return Credentials{}, fmt.Errorf("shop %d: %w", shopID, ErrShopNotConnected)
	}

	var shop ShopItem
	if err := attributevalue.UnmarshalMap(out.Item, &shop); err != nil {
		return Credentials{}, err
	}
	if strings.TrimSpace(shop.AccessTokenEnc) == "" {
		return Credentials{}, fmt.Errorf("shop %d has no access token: %w", shopID, ErrShopNotConnected)
	}

	keyB64 := os.Getenv("TOKEN_ENC_KEY_B64")
	if keyB64 == "" {
		return Credentials{}, fmt.Errorf("TOKEN_ENC_KEY_B64 not set")
	}
	cipher, err := security.NewTokenCipher(keyB64)
	if err != nil {
		return Credentials{}, fmt.Errorf("invalid TOKEN_ENC_KEY_B64: %w", err)
	}
	token, err := cipher.Open(shop.AccessTokenEnc)
	if err != nil {
		return Credentials{}, fmt.Errorf("decrypt access token for shop %d: %w", shopID, err)
	}

	return Credentials{
		PartnerID:   partnerID,
		PartnerKey:  partnerKey,
		ShopID:      shopID,
		AccessToken: token,
	}, nil
}
