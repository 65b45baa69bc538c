package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/bgysuite/barangay-backend/internal/adapter/storage"
	"github.com/bgysuite/barangay-backend/internal/config"
	"github.com/bgysuite/barangay-backend/internal/core/domain"
)

// Seeds a development database with a small rentable-asset catalog and a
// few resident profiles, then primes the Redis stock mirror.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.Load()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	items := []domain.InventoryItem{
		{ItemID: "monobloc-chair", Name: "Monobloc Chair", UnitPrice: decimal.NewFromInt(5), Quantity: 200},
		{ItemID: "folding-table", Name: "Folding Table", UnitPrice: decimal.NewFromInt(25), Quantity: 30},
		{ItemID: "event-tent", Name: "Event Tent", UnitPrice: decimal.NewFromInt(150), Quantity: 6},
		{ItemID: "sound-system", Name: "Sound System", UnitPrice: decimal.NewFromInt(500), Quantity: 2},
	}
	for _, item := range items {
		if err := mysqlAdapter.UpsertItem(ctx, item); err != nil {
			log.Fatalf("failed to seed item %s: %v", item.ItemID, err)
		}
		if err := redisAdapter.SetStockMirror(ctx, item.ItemID, item.Quantity); err != nil {
			log.Fatalf("failed to mirror stock for %s: %v", item.ItemID, err)
		}
		log.Printf("seeded item %s (qty %d)", item.ItemID, item.Quantity)
	}

	residents := []domain.Resident{
		{ID: "res-0001", FirstName: "Juan", LastName: "Dela Cruz"},
		{ID: "res-0002", FirstName: "Maria", LastName: "Santos"},
		{ID: "res-0003", FirstName: "Jose", LastName: "Reyes"},
	}
	for _, res := range residents {
		if err := mysqlAdapter.UpsertResident(ctx, res); err != nil {
			log.Fatalf("failed to seed resident %s: %v", res.ID, err)
		}
		log.Printf("seeded resident %s", res.ID)
	}

	log.Println("seed complete")
}
