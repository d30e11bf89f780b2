package server

import (
	"context"
	"testing"
	"time"

	"github.com/curtislbyrd/D3tectConvert/internal/config"
)

func TestStart_ClosesLimiterOnListenError(t *testing.T) {
	srv := testServer(t, func(cfg *config.Config) { cfg.Listen = "127.0.0.1:-1" })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Start(ctx); err == nil {
		t.Fatal("expected listen error for invalid port")
	}

	select {
	case <-srv.limiter.stopCleanup:
	default:
		t.Error("limiter cleanup goroutine still running after Start returned")
	}
}
