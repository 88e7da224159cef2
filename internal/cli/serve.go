package cli

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	api "github.com/mind-engage/mindengage-cat/internal/api/http"
	auth "github.com/mind-engage/mindengage-cat/internal/auth/middleware"
	"github.com/mind-engage/mindengage-cat/internal/config"
	"github.com/mind-engage/mindengage-cat/internal/grading"
	"github.com/mind-engage/mindengage-cat/internal/locks"
	"github.com/mind-engage/mindengage-cat/internal/platform/logger"
	"github.com/mind-engage/mindengage-cat/internal/pool"
	"github.com/mind-engage/mindengage-cat/internal/session"
	"github.com/mind-engage/mindengage-cat/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		if v, _ := cmd.Flags().GetString("addr"); v != "" {
			cfg.HTTPAddr = v
		}
		if v, _ := cmd.Flags().GetString("pool"); v != "" {
			cfg.ItemPoolFile = v
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides HTTP_ADDR)")
	serveCmd.Flags().String("pool", "", "YAML item pool file (overrides ITEM_POOL_FILE)")
}

// runtime is everything a server needs, built from config.
type runtime struct {
	manager  *session.Manager
	provider pool.Provider
	importer api.ItemImporter
	ready    func(context.Context) error
	closers  []func() error
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
}

func buildRuntime(ctx context.Context, cfg config.Config, log *logger.Logger) (*runtime, error) {
	rt := &runtime{ready: func(context.Context) error { return nil }}

	var (
		st  session.Store
		dbh *sql.DB
	)
	if cfg.DBDriver == "memory" {
		st = session.NewMemoryStore()
	} else {
		octx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		h, err := openDB(octx, cfg)
		if err != nil {
			return nil, err
		}
		dbh = h
		rt.closers = append(rt.closers, h.Close)
		rt.ready = h.PingContext
		st = store.NewSQLStore(h)
	}

	switch {
	case cfg.ItemPoolFile != "":
		items, err := pool.LoadFile(cfg.ItemPoolFile)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.provider = pool.NewStatic(items)
		log.Info("serving item pool from file", "path", cfg.ItemPoolFile, "items", len(items))
	case dbh != nil:
		sp := pool.NewSQLProvider(dbh)
		rt.provider, rt.importer = sp, sp
	default:
		rt.Close()
		return nil, errors.New("memory driver needs an item pool file (--pool or ITEM_POOL_FILE)")
	}

	var locker locks.Locker = locks.NewLocal()
	if cfg.RedisAddr != "" {
		rc, err := locks.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, rc.Close)
		locker = locks.NewRedis(rc, cfg.LockTTL)
		log.Info("using redis session locks", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
	}

	rt.manager = session.NewManager(st,
		session.WithLocker(locker),
		session.WithGrader(grading.NewDefaultGrader(grading.WithMaxEditDistance(cfg.FuzzyDistance))),
		session.WithLogger(log),
		session.WithBaseConfig(baseConfig(cfg)),
	)
	return rt, nil
}

func baseConfig(cfg config.Config) session.Config {
	return session.Config{
		ThetaMin:       cfg.ThetaMin,
		ThetaMax:       cfg.ThetaMax,
		MaxIterations:  cfg.MaxIterations,
		DegenerateStep: cfg.DegenerateStep,
	}
}

func serve(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	rt, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	handler := api.NewRouter(api.Deps{
		Manager:  rt.manager,
		Provider: rt.provider,
		Importer: rt.importer,
		Auth:     auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL),
		Credentials: auth.Credentials{
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
			OpenStudents:  cfg.Mode == config.ModeOffline,
		},
		EnableLocalAuth: cfg.EnableLocalAuth,
		CORSOrigins:     cfg.CORSOrigins(),
		Ready:           rt.ready,
		Log:             log,
		AccessLog:       true,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
