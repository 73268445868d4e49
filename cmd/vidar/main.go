package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vidar/domain/orderbook"
	"vidar/infra/journal"
	"vidar/infra/kafka"
	"vidar/infra/memory"
	"vidar/infra/sequence"
	"vidar/jobs/broadcaster"
	"vidar/metrics"
	"vidar/pricelevel"
	"vidar/service"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Journal ----------------

	jnl, err := journal.Open(cfg.JournalDir,
		journal.WithClock(func() int64 { return time.Now().UnixNano() }))
	if err != nil {
		log.Fatal("journal init failed", zap.Error(err))
	}
	defer jnl.Close()

	// reseed the outbound sequencer past anything already journaled
	last, err := jnl.MaxSeq()
	if err != nil {
		log.Fatal("journal recovery failed", zap.Error(err))
	}
	seqr := sequence.New(last)

	// ---------------- Metrics ----------------

	mets := metrics.New(prometheus.DefaultRegisterer)

	// ---------------- Domain ----------------

	sink := orderbook.MultiSink{
		service.NewJournalSink(jnl, seqr, log),
		service.NewMetricsSink(mets),
	}
	book := orderbook.New(cfg.Symbol,
		orderbook.WithLevelFactory(func(price int64) orderbook.Level {
			return pricelevel.New(price)
		}),
		orderbook.WithEventSink(sink),
		orderbook.WithMinOrderSize(cfg.MinOrderLots),
		orderbook.WithMaxOrderSize(cfg.MaxOrderLots),
		orderbook.WithSTPMode(cfg.STPMode()),
		orderbook.WithFeeSchedule(orderbook.FeeSchedule{
			MakerBps: cfg.MakerFeeBps,
			TakerBps: cfg.TakerFeeBps,
		}),
	)

	// ---------------- Service ----------------

	pool := memory.NewPool(func() *orderbook.Order {
		return &orderbook.Order{}
	})
	svc := service.NewOrderService(book, pool,
		service.NewScale(cfg.TickSize, cfg.LotSize), mets, log)

	// ---------------- Background Jobs ----------------

	go svc.RunExpiry(ctx, cfg.ExpiryInterval)

	bc, err := broadcaster.New(jnl, cfg.KafkaBrokers, cfg.EventsTopic,
		cfg.BroadcastInterval, log)
	if err != nil {
		log.Fatal("broadcaster init failed", zap.Error(err))
	}
	defer bc.Close()
	go bc.Run(ctx)

	// ---------------- Metrics HTTP ----------------

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server exited", zap.Error(err))
		}
	}()
	defer metricsSrv.Shutdown(context.Background())

	// ---------------- Command Stream ----------------

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.CommandsTopic, cfg.CommandGroup)
	defer consumer.Close()

	log.Info("engine running",
		zap.String("symbol", cfg.Symbol),
		zap.String("commands", cfg.CommandsTopic),
		zap.String("events", cfg.EventsTopic))

	for {
		msg, err := consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("shutting down")
				return
			}
			log.Error("command fetch failed", zap.Error(err))
			continue
		}
		if err := svc.Apply(msg.Value); err != nil {
			// poison message: log and move on, never stall the stream
			log.Warn("command dropped",
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
		if err := consumer.Commit(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("commit failed", zap.Error(err))
		}
	}
}
