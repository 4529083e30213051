// Command raceline runs the realtime connection and room broadcast server.
//
// It terminates the websocket endpoints for the racing app (general, race,
// location and notification channels), tracks room membership per race, and
// exposes the internal notification endpoints the REST service calls after
// successful mutations. Flags control debug logging, version output, the
// Redis location cache, and optional ngrok tunneling for development.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"raceline/api"
	"raceline/auth"
	"raceline/config"
	"raceline/locations"
	"raceline/realtime"
	ws "raceline/transport/websocket"
)

const (
	Version = "1.0.0"
	AppName = "Raceline Realtime Server"
)

var (
	debug        = flag.Bool("debug", false, "Enable debug logging")
	version      = flag.Bool("version", false, "Show version information")
	noRedis      = flag.Bool("no-redis", false, "Disable the Redis last-location cache")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

// locationSink adapts the write-behind location writer to the dispatcher's
// sink contract.
type locationSink struct {
	writer *locations.Writer
}

func (s *locationSink) RecordLocation(userID, raceID string, loc realtime.Location) {
	upd := locations.Update{
		UserID: userID,
		RaceID: raceID,
		Lat:    loc.Lat,
		Lng:    loc.Lng,
		TS:     time.Now().UnixMilli(),
	}
	if loc.Speed != nil {
		upd.Speed = *loc.Speed
	}
	if loc.Heading != nil {
		upd.Heading = *loc.Heading
	}
	s.writer.Enqueue(upd)
}

func main() {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	log := setupLogger(*debug)
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	log.Info().Str("version", Version).Str("addr", cfg.Addr).Msg("starting raceline")

	registry := prometheus.NewRegistry()
	metrics := realtime.NewMetrics()
	metrics.Register(registry)

	hub := realtime.NewHub(log, metrics)

	// Optional Redis last-location cache
	var sink realtime.LocationSink
	var writer *locations.Writer
	if !*noRedis {
		store := locations.NewRedisStore(
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			time.Duration(cfg.LocationTTLSeconds)*time.Second,
		)
		defer store.Close()

		writer = locations.NewWriter(store, locations.WriterConfig{
			QueueSize: cfg.RedisQueueSize,
			Workers:   cfg.RedisWorkers,
		}, log)
		sink = &locationSink{writer: writer}
	}

	dispatcher := realtime.NewDispatcher(hub, sink, log)
	verifier := auth.NewVerifier(cfg.JWTSecret)
	wsHandler := ws.NewHandler(hub, dispatcher, verifier, cfg, log)
	server := api.NewServer(hub, wsHandler, registry, log)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Setup graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	// Heartbeat monitor; cancelling ctx force-closes all connections.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = hub.RunHeartbeat(ctx, cfg.HeartbeatInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	if *ngrokEnabled || os.Getenv("NGROK_ENABLED") == "true" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, server, log)
		}()
	}

	sig := <-stop
	log.Info().Str("signal", sig.String()).Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown error")
	}
	if writer != nil {
		writer.Shutdown()
	}

	wg.Wait()
	log.Info().Msg("server stopped")
}

// setupLogger builds the root zerolog logger: pretty console output under
// -debug, JSON otherwise.
func setupLogger(debug bool) zerolog.Logger {
	if debug {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()
}

// runNgrokTunnel serves the handler through an ngrok tunnel for development
// access from outside the local network.
func runNgrokTunnel(ctx context.Context, handler http.Handler, log zerolog.Logger) {
	authToken := *ngrokAuth
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
	}
	if authToken == "" {
		log.Warn().Msg("ngrok enabled but no auth token provided")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain := tunnelDomain(); domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Warn().Err(err).Msg("failed to start ngrok tunnel")
		return
	}
	defer tun.Close()

	log.Info().Str("url", tun.URL()).Msg("ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		log.Warn().Err(err).Msg("ngrok server error")
	}
}

func tunnelDomain() string {
	if *ngrokDomain != "" {
		return *ngrokDomain
	}
	return os.Getenv("NGROK_DOMAIN")
}
