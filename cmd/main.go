package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"
	glog "github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"storybook/pkg/catalog"
	"storybook/pkg/config"
	"storybook/pkg/inference"
	"storybook/pkg/pipeline"
	"storybook/pkg/queue/imagegen"
	"storybook/pkg/render"
	"storybook/pkg/schema"
	"storybook/pkg/server"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer done()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration", "category", schema.CategoryConfiguration, "error", err)
	}
	log.SetLevel(cfg.Level())
	cfg.Summary()

	provider := catalog.Embedded()
	if cfg.CatalogDir != "" {
		provider = catalog.Dir(cfg.CatalogDir)
	}
	cat, err := provider.Load()
	if err != nil {
		log.Fatal("Failed to load catalog", "category", schema.CategoryConfiguration, "error", err)
	}
	log.Info("Catalog loaded", "themes", len(cat.Themes()), "age_levels", len(cat.AgeLevels()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts, err := gatewayOptions(ctx, cfg)
	if err != nil {
		log.Fatal("No usable AI backend", "category", schema.CategoryConfiguration, "error", err)
	}
	opts.Timeout = cfg.UpstreamTimeout
	opts.Metrics = inference.NewMetrics(reg)
	gw, err := inference.NewGateway(opts)
	if err != nil {
		log.Fatal("Failed to build gateway", "category", schema.CategoryConfiguration, "error", err)
	}

	q := imagegen.New(gw.Render, imagegen.Options{
		Workers:   cfg.ImageWorkers,
		Capacity:  cfg.ImageQueueSize,
		PerMinute: cfg.UpstreamRatePerMin,
	})
	gw.UseQueue(q)
	q.Start()

	layout := render.DefaultLayout()
	layout.Format = cfg.PageFormat
	renderer, err := render.NewRenderer(layout)
	if err != nil {
		log.Fatal("Failed to load page fonts", "error", err)
	}

	p := pipeline.New(cat, gw, renderer, pipeline.Options{
		Size:       cfg.ImageSize,
		Quality:    cfg.ImageQuality,
		StoryCount: cfg.StoryOptionCount,
		Layout:     renderer.Layout(),
	})

	srv := server.NewServer(ctx, p, server.Options{
		Backends: gw.Backends(),
		Gatherer: reg,
	})
	if cfg.Level() == log.DebugLevel {
		srv.Echo.Logger.SetLevel(glog.DEBUG)
	} else {
		srv.Echo.Logger.SetLevel(glog.INFO)
	}

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		}
		q.Stop()
		close(finishedShutDown)
	}()

	if err := srv.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server stopped", "error", err)
		done()
	}
	<-finishedShutDown
}

// gatewayOptions builds every backend that has credentials and arranges them
// per IMAGE_BACKENDS, VISION_BACKEND and STORY_BACKEND.
func gatewayOptions(ctx context.Context, cfg *config.Config) (inference.GatewayOptions, error) {
	available := make(map[string]inference.Backend)

	if key := cfg.GeminiKey(); key != "" {
		g, err := inference.NewGemini(ctx, key, cfg.GeminiTextModel, cfg.GeminiImageModel)
		if err != nil {
			return inference.GatewayOptions{}, err
		}
		available[g.Name()] = g
	}
	if cfg.OpenAIAPIKey != "" || cfg.OpenAIBaseURL != "" {
		o := inference.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAITextModel, cfg.OpenAIImageModel, inference.NewFetcher(cfg.FetchTimeout))
		if cfg.OpenAIBaseURL != "" {
			o.ChangeBaseURL(cfg.OpenAIBaseURL)
		}
		available[o.Name()] = o
	}

	var opts inference.GatewayOptions
	for _, name := range slices.Compact(cfg.ImageBackends) {
		b, ok := available[name]
		if !ok {
			log.Warn("Image backend has no credentials, skipping", "backend", name)
			continue
		}
		opts.Images = append(opts.Images, b)
	}
	if len(opts.Images) == 0 {
		return opts, schema.ErrMissingCredential.Withf("none of %v has credentials", cfg.ImageBackends)
	}

	pick := func(role, name string) inference.Backend {
		if name == "" {
			return nil
		}
		b, ok := available[name]
		if !ok {
			log.Warn("Configured backend has no credentials, using default", "role", role, "backend", name)
			return nil
		}
		return b
	}
	opts.Vision = pick("vision", cfg.VisionBackend)
	opts.Writer = pick("story", cfg.StoryBackend)
	if opts.Writer == nil {
		opts.Writer = opts.Vision
	}
	return opts, nil
}
