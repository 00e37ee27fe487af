package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"priceguard/alert"
	"priceguard/auth"
	"priceguard/bootstrap"
	"priceguard/config"
	"priceguard/exchange"
	"priceguard/kline"
	"priceguard/linktoken"
	"priceguard/logger"
	"priceguard/metrics"
	"priceguard/push"
	"priceguard/store"
	"priceguard/telegrambridge"
)

const (
	keyStore      = "store"
	keyRegistry   = "registry"
	keyKlineMgr   = "klineManager"
	keyHub        = "hub"
	keyLinkIssuer = "linkIssuer"
	keyTelegram   = "telegramBridge"
	keyEmitter    = "alertEmitter"
	keyHTTPEngine = "httpEngine"
)

// fanoutEmitter delivers a trigger over the websocket push fabric and, when
// a Telegram notifier is configured, as a supplemental DM. The two delivery
// channels are independent: a failed or skipped Telegram send never blocks
// or rolls back the websocket push.
type fanoutEmitter struct {
	hub      *push.Hub
	notifier *telegrambridge.Notifier
}

func (f fanoutEmitter) EmitAlertTriggered(userID string, payload alert.TriggerPayload) {
	f.hub.EmitAlertTriggered(userID, payload)
	if f.notifier != nil {
		f.notifier.Notify(userID, telegrambridge.AlertPayload{
			Symbol:       payload.Symbol,
			TargetValue:  payload.TargetValue,
			CurrentPrice: payload.CurrentPrice,
			Condition:    string(payload.Condition),
		})
	}
}

func main() {
	fmt.Println("priceguard - real-time price tracking and alerting")
	fmt.Println()

	cfg := config.Load()
	bctx := bootstrap.NewContext(cfg)

	registerInfrastructureHooks()
	registerDatabaseHooks()
	registerCoreHooks()
	registerBusinessHooks()

	if err := bootstrap.RunWithPolicy(bctx, bootstrap.WarnOnError); err != nil {
		logger.Log.Fatal().Err(err).Msg("startup failed")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := bctx.MustGet(keyStore).(*store.Store)
	reg := bctx.MustGet(keyRegistry).(*exchange.Registry)
	emitter := bctx.MustGet(keyEmitter).(alert.Emitter)
	httpEngine := bctx.MustGet(keyHTTPEngine).(*gin.Engine)

	engine := alert.NewEngine(st, reg, emitter, time.Duration(cfg.SweepInterval)*time.Second)
	go engine.Run(runCtx)

	if bridge, ok := bctx.Get(keyTelegram); ok {
		go bridge.(*telegrambridge.Bridge).Run(runCtx)
	}

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: httpEngine}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error().Err(err).Msg("http server error")
		}
	}()

	logger.Log.Info().Int("port", cfg.Port).Msg("priceguard listening")
	fmt.Println("press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println()
	logger.Log.Info().Msg("shutdown signal received, draining...")

	cancel() // stop the alert sweep loop and the Telegram long-poll loop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn().Err(err).Msg("http server shutdown error")
	}

	for _, a := range reg.All() {
		if err := a.Close(); err != nil {
			logger.Log.Warn().Str("exchange", a.Name()).Err(err).Msg("adapter close error")
		}
	}

	if err := st.Close(); err != nil {
		logger.Log.Error().Err(err).Msg("store close error")
		os.Exit(1)
	}

	logger.Log.Info().Msg("shutdown complete")
}

// registerInfrastructureHooks sets up metrics, priority 10 — everything
// downstream assumes it's ready to record against.
func registerInfrastructureHooks() {
	bootstrap.Register("metrics", bootstrap.PriorityInfrastructure, func(c *bootstrap.Context) error {
		metrics.Init()
		return nil
	})
}

// registerDatabaseHooks opens the durable store and wires the auth token
// blacklist to it, priority 20.
func registerDatabaseHooks() {
	bootstrap.Register("store", bootstrap.PriorityDatabase, func(c *bootstrap.Context) error {
		st, err := store.Open(c.Config.DatabasePath)
		if err != nil {
			return err
		}
		c.Set(keyStore, st)
		return nil
	})

	bootstrap.Register("auth", bootstrap.PriorityDatabase+5, func(c *bootstrap.Context) error {
		st := c.MustGet(keyStore).(*store.Store)
		auth.SetJWTSecret(c.Config.JWTSecret)
		auth.SetDatabase(st)
		auth.LoadBlacklistFromDB()
		auth.StartBlacklistCleaner(time.Hour)
		return nil
	})
}

// registerCoreHooks builds the exchange registry, every per-venue adapter,
// and the kline subscription manager that sits between them and the push
// fabric, priority 50.
func registerCoreHooks() {
	bootstrap.Register("exchange-registry", bootstrap.PriorityCore, func(c *bootstrap.Context) error {
		reg := exchange.NewRegistry()
		mgr := kline.NewManager(reg)

		sink := mgr.OnCandle
		reg.Register(exchange.NewBinance(sink))
		reg.Register(exchange.NewBybit(sink))
		reg.Register(exchange.NewOKX(sink))
		reg.Register(exchange.NewGate(sink))
		reg.Register(exchange.NewBitget(sink))
		reg.Register(exchange.NewMEXC(sink))

		c.Set(keyRegistry, reg)
		c.Set(keyKlineMgr, mgr)
		return nil
	})
}

// registerBusinessHooks wires the push fabric, the Telegram link/notify
// pair, and the HTTP engine that carries both, priority 100.
func registerBusinessHooks() {
	bootstrap.Register("push-fabric", bootstrap.PriorityBusiness, func(c *bootstrap.Context) error {
		mgr := c.MustGet(keyKlineMgr).(*kline.Manager)
		hub := push.NewHub(mgr)
		mgr.SetBroadcaster(hub)
		c.Set(keyHub, hub)
		c.Set(keyEmitter, alert.Emitter(fanoutEmitter{hub: hub}))
		return nil
	})

	bootstrap.Register("link-tokens", bootstrap.PriorityBusiness+1, func(c *bootstrap.Context) error {
		st := c.MustGet(keyStore).(*store.Store)
		c.Set(keyLinkIssuer, linktoken.NewIssuer(st))
		return nil
	})

	bootstrap.Register("telegram-bridge", bootstrap.PriorityBusiness+2, func(c *bootstrap.Context) error {
		st := c.MustGet(keyStore).(*store.Store)
		issuer := c.MustGet(keyLinkIssuer).(*linktoken.Issuer)
		bridge, err := telegrambridge.New(c.Config.TelegramBotToken, issuer, st)
		if err != nil {
			return err
		}
		c.Set(keyTelegram, bridge)

		hub := c.MustGet(keyHub).(*push.Hub)
		notifier := telegrambridge.NewNotifier(bridge.Bot(), st)
		c.Set(keyEmitter, alert.Emitter(fanoutEmitter{hub: hub, notifier: notifier}))
		return nil
	}).OnlyIf(func(c *bootstrap.Context) bool { return c.Config.Providers.TelegramEnabled })

	bootstrap.Register("http-engine", bootstrap.PriorityBusiness+3, func(c *bootstrap.Context) error {
		hub := c.MustGet(keyHub).(*push.Hub)

		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery())
		r.Use(metrics.GinMiddleware())

		pushSrv := push.NewServer(hub, c.Config)
		r.Use(pushSrv.AccessLogMiddleware())
		pushSrv.RegisterRoutes(r)

		r.GET("/metrics", metrics.Handler())
		r.GET("/healthz", func(gc *gin.Context) { gc.Status(200) })

		c.Set(keyHTTPEngine, r)
		return nil
	})
}
