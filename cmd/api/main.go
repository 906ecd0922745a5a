package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/catalog"
	"storefront/internal/infra/db"
	"storefront/internal/infra/notify"
	"storefront/internal/infra/payment"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/observability"
	"storefront/internal/server"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	//.env は無くてもよい
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.GoEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "storefront",
		Environment: cfg.GoEnv,
		Stdout:      cfg.OTelStdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	//DB接続
	gormDB, err := db.Connect(cfg.DSN())
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	itemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	variantRepo := infraRepo.NewVariantGormRepository(gormDB)
	checkoutRepo := infraRepo.NewCheckoutGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	//外部連携
	var payments usecase.PaymentGateway = payment.NewStubGateway()
	if cfg.PaymentGatewayURL != "" {
		payments = payment.NewHTTPGateway(cfg.PaymentGatewayURL, cfg.PaymentAPIKey, log)
	} else {
		log.Warn("PAYMENT_GATEWAY_URL is empty; using stub payments")
	}

	var notifier usecase.OrderNotifier = notify.NewLogNotifier(log)
	if cfg.RedisAddr != "" {
		rn, rdb, err := notify.NewRedisNotifier(ctx, cfg.RedisAddr, cfg.RedisChannel, log)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		notifier = rn
	}

	//usecaseに渡す部品
	ids := usecase.UUIDGenerator{}
	clock := usecase.SystemClock{}
	checkoutValidator := validator.NewCheckoutValidator()
	variants := catalog.NewVariantCatalog(variantRepo)

	ledgerCfg := usecase.DefaultLedgerConfig()
	ledgerCfg.ReserveMaxAttempts = cfg.Checkout.ReserveMaxAttempts

	//Usecase生成
	ledger := usecase.NewInventoryLedger(txm, inventoryRepo, ids, clock, ledgerCfg, m, log)
	cartUC := usecase.NewCartUsecase(txm, cartRepo, itemRepo, checkoutRepo, variants, ledger, checkoutValidator, ids, clock, cfg.Checkout, log)
	checkoutUC := usecase.NewCheckoutUsecase(txm, cartRepo, itemRepo, checkoutRepo, cartUC, ledger, payments, checkoutValidator, ids, clock, cfg.Checkout, m, log)
	orderUC := usecase.NewOrderMaterializer(txm, cartRepo, itemRepo, checkoutRepo, orderRepo, orderItemRepo, variants, ledger, payments, notifier, ids, clock, m, log)
	mergeUC := usecase.NewCartMergeResolver(txm, cartRepo, cartUC, ids, clock, log)
	catalogAdmin := usecase.NewCatalogAdmin(txm, clock, log)
	audits := usecase.NewAuditQuery(auditRepo)
	sweeper := usecase.NewExpirySweeper(txm, checkoutRepo, cartRepo, ledger, clock, cfg.Checkout.ReservationGrace, cfg.Checkout.SweepInterval, m, log)

	//Handler生成
	e := server.New(cfg, log, server.Handlers{
		Cart:     handler.NewCartHandler(cartUC, mergeUC),
		Checkout: handler.NewCheckoutHandler(checkoutUC, orderUC),
		Order:    handler.NewOrderHandler(orderUC),
		Admin:    handler.NewAdminInventoryHandler(ledger, catalogAdmin, audits),
	}, reg)

	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}

	//Server と スイーパーを並行で動かす
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server started", "addr", addr)
		return server.Start(gctx, e, addr)
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	return g.Wait()
}
