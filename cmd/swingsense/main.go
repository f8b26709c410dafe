package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/swingsense/api"
	"github.com/jrsteele09/swingsense/authctx"
	"github.com/jrsteele09/swingsense/internal/config"
	"github.com/jrsteele09/swingsense/internal/logger"
	"github.com/jrsteele09/swingsense/internal/metrics"
	"github.com/jrsteele09/swingsense/internal/tracing"
	"github.com/jrsteele09/swingsense/server"
	"github.com/jrsteele09/swingsense/session"
	"github.com/jrsteele09/swingsense/session/memsource"
	"github.com/jrsteele09/swingsense/session/oauthsource"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	for {
		if err := run(collector); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run(collector *metrics.Collector) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	logger.Setup(c.GetLogLevel(), c.GetEnv(), os.Stdout)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	endpoint := ""
	if c.GetOTelEnabled() {
		endpoint = c.GetOTelEndpoint()
	}
	shutdownTracing, err := tracing.Setup(ctx, c.GetAppName(), endpoint)
	if err != nil {
		return fmt.Errorf("tracing.Setup: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	src := newSessionSource(ctx, c)
	auth := authctx.New(src, authctx.WithMetrics(collector))
	if err := auth.Mount(ctx); err != nil {
		log.Warn().Err(err).Msg("initial session check failed, starting signed out")
	}
	defer auth.Unmount()

	client, err := api.New(api.Config{BaseURL: c.GetAPIBaseURL(), Timeout: c.GetAPITimeout()}, src,
		api.WithMetrics(collector),
		api.WithBeforeDispatch(server.PropagateRequestID),
	)
	if err != nil {
		return fmt.Errorf("api.New: %w", err)
	}

	handler, err := server.New(c, server.Deps{Auth: auth, API: client, Gatherer: prometheus.DefaultGatherer})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// newSessionSource picks the identity provider named by IDENTITY_PROVIDER.
func newSessionSource(ctx context.Context, c config.Config) session.Source {
	switch c.GetIdentityProvider() {
	case config.IdentityProviderOAuth:
		log.Info().Str("url", c.GetIdentityURL()).Msg("Using OAuth identity provider")
		return oauthsource.New(ctx, oauthsource.Config{
			IdentityURL: c.GetIdentityURL(),
			ClientID:    c.GetIdentityPublicKey(),
		})
	default:
		log.Warn().Msg("Using in-memory identity provider, accounts are lost on restart")
		return memsource.New(
			memsource.WithSecret(c.GetIdentityTokenSecret()),
			memsource.WithAutoConfirm(c.GetIdentityAutoConfirm()),
			memsource.WithTokenTTL(c.GetIdentityTokenTTL()),
		)
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
