package main

import (
	"context"
	"log"

	"backend/internal/etl"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
)

func main() {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	lambda.Start(etl.NewFinanceMetricsETL(cfg).Handle)
}
