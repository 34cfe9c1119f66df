package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/youssefsiam38/tagstream/driver/pgxv5"
	"github.com/youssefsiam38/tagstream/leadership"
	"github.com/youssefsiam38/tagstream/maintenance"
	"github.com/youssefsiam38/tagstream/notifier"
	"github.com/youssefsiam38/tagstream/ui"
)

var (
	pruneRetention        time.Duration
	prunePartialRetention time.Duration
	serveAddr             string
	serveCleanup          time.Duration
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the message tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		drv, closeFn, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		if err := drv.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		newLogger().Info("schema up to date")
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old and truncated messages once",
	RunE: func(cmd *cobra.Command, args []string) error {
		drv, closeFn, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		cleanup, err := maintenance.NewCleanup(pgxv5.NewStore(drv), &maintenance.CleanupConfig{
			Retention:        pruneRetention,
			PartialRetention: prunePartialRetention,
		})
		if err != nil {
			return err
		}
		result := cleanup.RunOnce(cmd.Context())
		newLogger().Info("pruned",
			"expired", result.ExpiredMessages,
			"partial", result.PartialMessages)
		return errors.Join(result.Errors...)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the transcript viewer",
	Long: `Serve runs the transcript viewer under /ui/ with live updates over
server-sent events. Processes serving the same database elect one leader
that runs the periodic cleanup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger := newLogger()

		drv, closeFn, err := connect(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		notes := notifier.NewNotifier(drv.GetListener, drv.GetNotifier(), &notifier.Config{
			OnError:     func(err error) { logger.Warn("notifier", "error", err) },
			OnReconnect: func() { logger.Info("notifier reconnecting") },
		})
		if err := notes.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = notes.Stop(context.Background()) }()

		store := pgxv5.NewStore(drv)
		cleanup, err := maintenance.NewCleanup(store, &maintenance.CleanupConfig{
			Interval:         serveCleanup,
			Retention:        pruneRetention,
			PartialRetention: prunePartialRetention,
			OnCleanup: func(r *maintenance.CleanupResult) {
				logger.Debug("cleanup", "expired", r.ExpiredMessages, "partial", r.PartialMessages)
			},
			OnError: func(err error) { logger.Warn("cleanup", "error", err) },
		})
		if err != nil {
			return err
		}

		elector := leadership.NewElector(store, &leadership.Config{
			LeaseName: "cleanup",
			OnError:   func(err error) { logger.Warn("election", "error", err) },
		}, leadership.Callbacks{
			OnBecameLeader: func(ctx context.Context) {
				logger.Info("elected; starting cleanup")
				_ = cleanup.Start(ctx)
			},
			OnLostLeadership: func(ctx context.Context) {
				logger.Info("lost leadership; stopping cleanup")
				_ = cleanup.Stop(ctx)
			},
		})
		if err := elector.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = elector.Stop(context.Background()) }()

		mux := http.NewServeMux()
		mux.Handle("/ui/", http.StripPrefix("/ui", ui.Handler(drv.GetStore(), notes, &ui.Config{
			BasePath: "/ui",
			Logger:   logger,
		})))
		srv := &http.Server{Addr: serveAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Info("serving", "addr", serveAddr, "leader_id", elector.LeaderID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, pruneCmd, serveCmd)

	for _, cmd := range []*cobra.Command{pruneCmd, serveCmd} {
		cmd.Flags().DurationVar(&pruneRetention, "retention", 30*24*time.Hour, "Delete messages older than this (0 keeps them)")
		cmd.Flags().DurationVar(&prunePartialRetention, "partial-retention", maintenance.DefaultPartialRetention, "Delete truncated messages older than this (0 keeps them)")
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().DurationVar(&serveCleanup, "cleanup-interval", maintenance.DefaultCleanupInterval, "How often the leader prunes")
}

// connect opens a pool for --database-url. The returned func closes it.
func connect(ctx context.Context) (*pgxv5.Driver, func(), error) {
	if databaseURL == "" {
		return nil, nil, errors.New("--database-url or DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return pgxv5.New(pool), pool.Close, nil
}
