package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httpapi "github.com/i474232898/dashboard-aggregation/internal/api/http"
	"github.com/i474232898/dashboard-aggregation/internal/config"
	"github.com/i474232898/dashboard-aggregation/internal/events"
	"github.com/i474232898/dashboard-aggregation/internal/market"
	"github.com/i474232898/dashboard-aggregation/internal/news"
	"github.com/i474232898/dashboard-aggregation/internal/notify"
	"github.com/i474232898/dashboard-aggregation/internal/providers"
	"github.com/i474232898/dashboard-aggregation/internal/scheduler"
	"github.com/i474232898/dashboard-aggregation/internal/store"
	"github.com/i474232898/dashboard-aggregation/internal/stream"
	"github.com/i474232898/dashboard-aggregation/internal/weather"
)

const serviceName = "dashboard-aggregation"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTP.Timeout,
	}

	// Change events flow from the store to the emitter through the bus.
	bus := events.NewBus(cfg.Notify.EventBuffer, logger)

	st := store.New(cfg.Tracked.Cities, cfg.Tracked.Assets, store.Options{
		HistoryLimit: cfg.Store.HistoryLimit,
		Publisher:    bus,
		Logger:       logger,
	})

	renderers := []notify.Renderer{notify.LogRenderer{Logger: logger}}
	var kafkaSink *notify.KafkaRenderer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink = notify.NewKafkaRenderer(notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		renderers = append(renderers, kafkaSink)
		logger.Info("kafka alert sink enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	emitter := notify.NewEmitter(notify.Options{
		TTL:         cfg.Notify.TTL,
		Max:         cfg.Notify.Max,
		DedupWindow: cfg.Notify.DedupWindow,
		Renderers:   renderers,
		Logger:      logger,
	})
	emitterDone := make(chan struct{})
	go func() {
		defer close(emitterDone)
		emitter.Run(context.Background(), bus.Events())
	}()

	// Providers.
	var weatherProvider weather.Provider
	switch cfg.Weather.Provider {
	case "weatherapi":
		weatherProvider = providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPI.APIKey)
	case "openmeteo":
		// Open-Meteo does not require an API key but needs coordinates for every city.
		weatherProvider = providers.NewOpenMeteoProvider(httpClient)
	default:
		weatherProvider = providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeather.APIKey)
	}
	var resolver weather.Resolver
	if cfg.Geocoder.APIKey != "" {
		resolver = providers.NewGeocoder(cfg.Geocoder.APIKey)
	}

	weatherSvc := weather.NewService(weatherProvider, resolver, logger)
	marketSvc := market.NewService(providers.NewCoinGeckoProvider(httpClient, cfg.CoinGecko.APIKey, cfg.Store.HistoryLimit, logger), logger)
	newsSvc := news.NewService(providers.NewNewsDataProvider(httpClient, cfg.NewsData.APIKey), logger)

	// Scheduler that periodically fetches each domain into the store.
	sched := scheduler.New(logger)
	sched.Register(scheduler.DomainWeather, cfg.Poll.WeatherInterval, cfg.Poll.Timeout,
		scheduler.WeatherJob(weatherSvc, st, cfg.Tracked.Cities))
	sched.Register(scheduler.DomainCrypto, cfg.Poll.CryptoInterval, cfg.Poll.Timeout,
		scheduler.CryptoJob(marketSvc, st))
	sched.Register(scheduler.DomainNews, cfg.Poll.NewsInterval, cfg.Poll.Timeout,
		scheduler.NewsJob(newsSvc, st))
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	// Live price feed.
	var ingestor *stream.Ingestor
	streamDone := make(chan struct{})
	if cfg.Stream.Enabled {
		url := providers.CoinCapStreamURL(cfg.Stream.URL, cfg.AssetIDs())
		ingestor = stream.NewIngestor(stream.NewClient(url, cfg.Stream.Buffer, logger), st, stream.Options{
			Reconnect:      cfg.Stream.Reconnect,
			ReconnectDelay: cfg.Stream.ReconnectDelay,
			Logger:         logger,
		})
		go func() {
			defer close(streamDone)
			if err := ingestor.Run(ctx); err != nil {
				logger.Warn("price stream stopped; continuing with polling only", zap.Error(err))
			}
		}()
	} else {
		close(streamDone)
	}

	app := httpapi.NewApp(serviceName)
	deps := httpapi.Deps{State: st, Refresher: sched, Alerts: emitter}
	if ingestor != nil {
		deps.Stream = ingestor
	}
	httpapi.RegisterRoutes(app, deps)

	go func() {
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			logger.Info("fiber server stopped", zap.Error(err))
		}
	}()
	logger.Info("dashboard started",
		zap.String("port", cfg.App.Port),
		zap.Int("cities", len(cfg.Tracked.Cities)),
		zap.Int("assets", len(cfg.Tracked.Assets)))

	// Wait for termination signal
	<-ctx.Done()
	logger.Info("shutting down")

	// Late results become no-ops before the producers are torn down.
	st.Close()
	sched.Stop()
	<-streamDone
	bus.Close()
	<-emitterDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Warn("closing kafka writer", zap.Error(err))
		}
	}
}
