package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// HTTPServer is the part of httpserver.Server that Serve drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

// Serve runs srv and the event publisher until ctx is done. The publisher is
// stopped only after Shutdown returns, so events from in-flight requests are
// still flushed.
func (a *App) Serve(ctx context.Context, srv HTTPServer, shutdownTimeout time.Duration) error {
	var pub runner
	if a.kafka != nil {
		pub = a.kafka
	}
	return serve(ctx, a.logger, srv, pub, shutdownTimeout)
}

func serve(ctx context.Context, logger *log.Logger, srv HTTPServer, pub runner, shutdownTimeout time.Duration) error {
	pubCtx, stopPub := context.WithCancel(context.Background())
	defer stopPub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("shutting down")
		defer stopPub()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if pub != nil {
		g.Go(func() error {
			return pub.Run(pubCtx)
		})
	}
	return g.Wait()
}
