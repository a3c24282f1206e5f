package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"yashubustudio/simmatch/internal/web"
	"yashubustudio/simmatch/simmatch"
)

func main() {
	configPath := flag.String("config", "", "Path to config.json or config.yaml (default: ./config.json)")
	addr := flag.String("addr", "", "Listen address (default from config, :8080)")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		log.Fatalf("simmatch-web: %v", err)
	}
}

func run(configPath, addr string) error {
	simmatch.LoadDotEnv()
	cfg, err := simmatch.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	simmatch.ApplyEnv(&cfg)
	if addr != "" {
		cfg.Server.Addr = addr
	}
	cfg.ApplyDefaults()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	embedder, err := simmatch.NewEmbedder(context.Background(), cfg.Embedder, logger)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	service, err := simmatch.NewService(embedder, cfg, logger)
	if err != nil {
		_ = embedder.Close()
		return fmt.Errorf("init service: %w", err)
	}
	defer service.Close()

	srv := web.NewServer(service, cfg, logger)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Println("Shutting down")
		_ = srv.Shutdown()
	}()

	logger.Printf("simmatch listening on %s (backend %s, model %s)", cfg.Server.Addr, cfg.Embedder.Backend, embedder.ModelID())
	return srv.Listen()
}
