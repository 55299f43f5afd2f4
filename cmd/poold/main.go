package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"iptpool/observability/logging"
	"iptpool/services/poold/config"
	"iptpool/services/poold/server"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/poold/poold.yaml", "path to poold config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("IPTPOOL_ENV"))
	logging.Setup("poold", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	srv, err := server.New(cfg, log.Default())
	if err != nil {
		log.Fatalf("build server: %v", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Printf("close server: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: srv.Handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("poold listening on %s", cfg.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("forcing server close: %v", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve http: %v", err)
		}
	}
}
