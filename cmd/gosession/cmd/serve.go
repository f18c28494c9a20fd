package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pterm/pterm"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/goSession/internal/authserver"
	"github.com/MrEthical07/goSession/internal/logging"
)

var (
	serveRedisAddr string
	servePort      string
	serveLogFormat string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference authentication service",
	Long: `serve starts the reference authentication service. Settings come from the
environment (PORT, REDIS_ADDR, JWT_ACCESS_SECRET, FRONTEND_ORIGIN, GOOGLE_*)
and an optional .env file. Without --redis-addr or REDIS_ADDR an in-process
Redis is used and all data is lost on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := authserver.ReadEnv()
		if err != nil {
			return err
		}
		if servePort != "" {
			cfg.Port = servePort
		}
		if cfg.JWTAccessSecret == "" {
			secret, err := randomSecret()
			if err != nil {
				return err
			}
			cfg.JWTAccessSecret = secret
			pterm.Warning.Println("JWT_ACCESS_SECRET not set; using a random secret, tokens will not survive a restart")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		addr := serveRedisAddr
		if addr == "" {
			addr = cfg.RedisAddr
		}
		rdb, cleanup, err := openRedis(addr)
		if err != nil {
			return err
		}
		defer cleanup()

		log := logging.New(logging.Config{Level: logLevel, Format: serveLogFormat})
		srv, err := authserver.New(authserver.Options{
			Config: cfg,
			Redis:  rdb,
			Logger: log,
		})
		if err != nil {
			return err
		}

		httpSrv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			pterm.Success.Printf("Listening on %s\n", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveRedisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or an in-process miniredis is used")
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (overrides PORT)")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "text", "log format: text or json")
}

// openRedis connects to addr, or starts an in-process miniredis when addr is
// empty.
func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		pterm.Info.Printf("Using in-process redis at %s\n", mr.Addr())
		return rdb, func() {
			_ = rdb.Close()
			mr.Close()
		}, nil
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis at %s: %w", addr, err)
	}
	pterm.Info.Printf("Using redis at %s\n", addr)
	return rdb, func() { _ = rdb.Close() }, nil
}

func randomSecret() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
