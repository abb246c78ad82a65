package db

import "os"

func OrdersTableName() string {
	return os.Getenv("ORDERS_TABLE")
}

func EscrowTableName() string {
	return os.Getenv("ESCROW_TABLE")
}

func FlashSalesTableName() string {
	return os.Getenv("FLASH_SALES_TABLE")
}

func ShopsTableName() string {
	return os.Getenv("SHOPS_TABLE")
}

func SyncStatusTableName() string {
	return os.Getenv("SYNC_STATUS_TABLE")
}

func ActivityLogTableName() string {
	return os.Getenv("ACTIVITY_LOG_TABLE")
}
