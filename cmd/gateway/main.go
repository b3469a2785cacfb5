package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	checkoutapp "github.com/bloemendal/storefront/internal/checkout/app"
	"github.com/bloemendal/storefront/internal/checkout/infra/adapter"
	"github.com/bloemendal/storefront/internal/checkout/infra/memflag"
	"github.com/bloemendal/storefront/internal/notify/mailhttp"
	orderapp "github.com/bloemendal/storefront/internal/order/app"
	orderpg "github.com/bloemendal/storefront/internal/order/infra/postgres"
	promohttp "github.com/bloemendal/storefront/internal/promo/infra/httpclient"
	recoveryapp "github.com/bloemendal/storefront/internal/recovery/app"
	recoverypg "github.com/bloemendal/storefront/internal/recovery/infra/postgres"
	"github.com/bloemendal/storefront/internal/settings"
	"github.com/bloemendal/storefront/pkg/config"
	"github.com/bloemendal/storefront/pkg/logger"
	"github.com/bloemendal/storefront/pkg/shutdown"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service:   "checkout-gateway",
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: true,
	})

	root := context.Background()
	ctx, cancel := shutdown.WithSignals(root)
	defer cancel()

	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connect failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer db.Close()

	store := settings.NewStatic(settings.Settings{
		ShippingCost:          cfg.ShippingCost,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
	})

	orderSvc := orderapp.NewService(orderpg.NewOrderRepo(db), store, log)
	recoverySvc := recoveryapp.NewService(
		orderSvc,
		recoverypg.NewVariantRepo(db),
		log,
		10,
	)

	sessions := checkoutapp.NewManager(checkoutapp.Deps{
		Settings: store,
		Orders:   adapter.NewOrderWriter(orderSvc),
		Payments: adapter.NewPaymentClient(cfg.PaymentEndpoint),
		Lookup:   adapter.NewLookupClient(cfg.LookupEndpoint),
		Flags:    memflag.New(),
		Log:      log,
	}, promohttp.NewValidator(cfg.PromoEndpoint))

	srv := &server{
		log:      log,
		sessions: sessions,
		orders:   orderSvc,
		recovery: recoverySvc,
		settings: store,
		mail:     mailhttp.NewSender(cfg.MailEndpoint, cfg.MailFrom),
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("http server starting", slog.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", slog.Any("err", err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", slog.Any("err", err))
	}

	wg.Wait()
	log.Info("bye")
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}
