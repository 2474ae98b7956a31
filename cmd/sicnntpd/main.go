// Command sicnntpd serves the forum's stories and comments over NNTP.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/epilys/sic-sub000/forum"
	"github.com/epilys/sic-sub000/internal/config"
	"github.com/epilys/sic-sub000/internal/logging"
	"github.com/epilys/sic-sub000/publisher"
	"github.com/epilys/sic-sub000/server"
	"github.com/epilys/sic-sub000/store/couchstore"
	"github.com/epilys/sic-sub000/store/sqlstore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("sicnntpd failed", "error", err)
		os.Exit(1)
	}
}

type closers []io.Closer

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (cs closers) Close() {
	for i := len(cs) - 1; i >= 0; i-- {
		cs[i].Close()
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	if cfg.PrintConfig {
		return cfg.Write(os.Stdout)
	}

	log := logging.Init(logging.ParseFormat(cfg.LogFormat), logging.ParseLevel(cfg.LogLevel))
	if cfg.File != "" {
		log.Info("read config", "file", cfg.File)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanup closers
	defer func() { cleanup.Close() }()

	src, users, c, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, c)
	log.Info("opened store", "driver", cfg.Store.Driver, "dsn", cfg.Store.DSN)

	var recv forum.Receiver
	if cfg.AMQP.URL != "" {
		pub, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.AMQP.URL,
			Exchange:   cfg.AMQP.Exchange,
			RoutingKey: cfg.AMQP.RoutingKey,
			QueueName:  cfg.AMQP.Queue,
		}, logging.Component(log, "publisher"))
		if err != nil {
			return err
		}
		cleanup = append(cleanup, pub)
		recv = pub
	}

	backend := forum.NewBackend(src, forum.Options{
		Domain:           cfg.Domain,
		BaseURL:          cfg.BaseURL,
		GroupName:        cfg.GroupName,
		GroupDescription: cfg.GroupDescription,
		LowWaterMark:     cfg.LowWaterMark,
		IndexTTL:         cfg.IndexTTL,
		Users:            users,
		Receiver:         recv,
		Logger:           log,
	})
	if err := backend.Refresh(ctx); err != nil {
		log.Warn("initial index build failed", "error", err)
	}

	s := nntpserver.NewServer(backend)
	s.Auth = cfg.AuthSetting()
	s.Posting = cfg.PostSetting()
	s.ReadTimeout = cfg.ReadTimeout
	s.Logger = logging.Component(log, "server")

	tlsConfig, err := loadTLS(cfg)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.ListenAndServe(cfg.Addr(), tlsConfig)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "grace", cfg.ShutdownGrace)
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := s.Shutdown(sctx); err != nil {
		log.Warn("shutdown", "error", err)
	}
	if err := <-errc; !errors.Is(err, nntpserver.ErrServerClosed) {
		return err
	}
	return nil
}

// openSource returns the forum records and, for SQL stores, the user
// accounts.
func openSource(ctx context.Context, cfg *config.Config) (forum.Source, forum.UserStore, io.Closer, error) {
	switch cfg.Store.Driver {
	case "sqlite", "postgres":
		st, err := sqlstore.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, st, st, nil
	case "couchdb":
		st, err := couchstore.Open(cfg.Store.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := st.EnsureViews(ctx); err != nil {
			return nil, nil, nil, err
		}
		return st, nil, nopCloser{}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func loadTLS(cfg *config.Config) (*tls.Config, error) {
	if !cfg.UseSSL {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading TLS key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
