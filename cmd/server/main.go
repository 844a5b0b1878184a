package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avatar-compositor/internal/chromakey"
	"avatar-compositor/internal/heygen"
	"avatar-compositor/internal/platform/config"
	"avatar-compositor/internal/platform/logger"
	"avatar-compositor/internal/platform/metrics"
	"avatar-compositor/internal/session"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	params, err := chromaParams(cfg)
	if err != nil {
		log.Error("invalid chroma key configuration", "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	sched := chromakey.NewTickerScheduler(cfg.RenderFPS)
	defer sched.Close()

	client := heygen.NewClient(cfg.HeyGenAPIKey, cfg.HeyGenBaseURL, &http.Client{Timeout: cfg.VendorTimeout})
	svc := session.NewService(
		session.NewInMemoryRepository(),
		client,
		heygen.Factory(client),
		session.Deps{
			Compositor: chromakey.NewCompositor(params),
			Scheduler:  sched,
			Binder:     chromakey.NewBinder(),
			Log:        log,
			Metrics:    met,
		},
	)

	tokens := heygen.NewTokenHandler(client, log, met)
	keyer := chromakey.NewHandler(params, log, met)
	sessions := session.NewHandler(svc, log, met, cfg.MaxFrameBytes)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(svc.ActiveCount()) }).ServeHTTP(w, r)
	})
	r.Post("/api/get-access-token", tokens.GetAccessToken)
	r.Post("/chromakey", keyer.Key)
	r.Route("/sessions", sessions.Routes)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"render_fps", cfg.RenderFPS,
		"log_level", cfg.LogLevel,
		"heygen_base_url", client.BaseURL(),
		"heygen_key_configured", cfg.HeyGenAPIKey != "",
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	svc.Shutdown(ctx)

	log.Info("server stopped")
}

// chromaParams builds the default compositor settings from the environment.
func chromaParams(cfg config.Config) (chromakey.Params, error) {
	p := chromakey.DefaultParams()
	p.MinHue = cfg.ChromaMinHue
	p.MaxHue = cfg.ChromaMaxHue
	p.MinSaturation = cfg.ChromaMinSaturation
	p.Threshold = cfg.ChromaThreshold
	p.SoftenRadius = cfg.ChromaSoftenRadius

	alpha := cfg.ChromaResidualAlpha
	if alpha < 0 {
		alpha = 0
	} else if alpha > 255 {
		alpha = 255
	}
	p.ResidualAlpha = uint8(alpha)

	order, err := chromakey.ParseSoftenOrder(cfg.ChromaSoftenOrder)
	if err != nil {
		return p, err
	}
	p.SoftenOrder = order

	bg, err := chromakey.ParseColor(cfg.ChromaBackground)
	if err != nil {
		return p, err
	}
	p.Background = bg
	return p, p.Validate()
}
