package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/sheetmd/internal/ai"
	cfgpkg "github.com/local/sheetmd/internal/config"
	"github.com/local/sheetmd/internal/convert"
	logpkg "github.com/local/sheetmd/internal/logger"
	"github.com/local/sheetmd/internal/metrics"
	"github.com/local/sheetmd/internal/storage"
	"github.com/local/sheetmd/internal/store"
	web "github.com/local/sheetmd/internal/web"
)

func main() {
	inputPath := flag.String("input", "", "convert this file or directory and exit")
	outputDir := flag.String("output", "", "output directory for one-shot mode (default: OUTPUT_DIR)")
	flag.Parse()

	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	client, err := ai.NewGeminiClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.RequestTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init generation client")
	}

	coord := convert.NewCoordinator(client, cfg.AI, cfg.Convert)

	// One-shot CLI mode
	if *inputPath != "" {
		out := *outputDir
		if out == "" {
			out = cfg.Server.OutputDir
		}
		runOnce(coord, *inputPath, out)
		return
	}

	// Status store
	rs, err := store.NewRedisStatus(cfg.Store.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init redis status store")
	}
	defer rs.Close()

	// S3 collaborator (optional)
	var fetcher web.Fetcher
	var uploader web.Uploader
	if cfg.Storage.Bucket != "" {
		s3c, err := storage.NewS3Client(context.Background(), cfg.Storage.Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init S3 client")
		}
		fetcher = s3c
		if cfg.Storage.UploadResults {
			uploader = s3c
		}
	}

	srvAPI := web.New(coord, rs, fetcher, cfg.Server)
	if uploader != nil {
		srvAPI.WithUploader(uploader)
	}
	mux := http.NewServeMux()
	srvAPI.RegisterRoutes(mux)

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}

func runOnce(coord *convert.Coordinator, input, output string) {
	res := coord.Convert(context.Background(), input, output)
	for _, p := range res.Created {
		fmt.Println("created:", p)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "error: %s: %s\n", e.File, e.Err)
	}
	if len(res.Created) == 0 && len(res.Errors) > 0 {
		os.Exit(1)
	}
}
