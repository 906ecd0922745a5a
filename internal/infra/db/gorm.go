package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"storefront/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
// "sqlite:" で始まる DSN はローカル確認用に SQLite を開く。
func Connect(dsn string) (*gorm.DB, error) {
	if rest, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		return OpenSQLite(rest)
	}
	return gorm.Open(postgres.Open(dsn), gormConfig())
}

// OpenSQLite は1コネクションの SQLite を開く。
// 同時書き込みでロックを取り合わないように接続は1本に絞る。
func OpenSQLite(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		// 一意制約違反を gorm.ErrDuplicatedKey にそろえる
		TranslateError: true,
		Logger:         newGormLogger(log.New(os.Stdout, "\r\n", log.LstdFlags)),
	}
}

// Warn 以上だけ出す。見つからないのは通常の分岐なので出さない
func newGormLogger(w gormlogger.Writer) gormlogger.Interface {
	return gormlogger.New(w, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// 部分一意インデックス（AutoMigrate では作れない）
var partialIndexes = []string{
	// 1 Identity につき ACTIVE カートは1つ
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_one_active ON carts (owner_kind, owner_ref) WHERE status = 'ACTIVE'`,
	// 1 カートにつき未終端のセッションは1つ
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_checkout_one_open ON checkout_sessions (cart_id) WHERE status IN ('STARTED','ADDRESS_SET','SHIPPING_SET','PAYMENT_SET')`,
}

// Migrate はテーブルとインデックスを作る。
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&model.ProductVariant{},
		&model.InventoryRecord{},
		&model.InventoryAdjustment{},
		&model.Cart{},
		&model.CartItem{},
		&model.CheckoutSession{},
		&model.StockReservation{},
		&model.Order{},
		&model.OrderItem{},
		&model.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
