package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procurement/internal/config"
	"procurement/internal/controller"
	"procurement/internal/logging"
	"procurement/internal/models"
	"procurement/internal/repository"
	"procurement/internal/repository/memory"
	"procurement/internal/router"
	"procurement/internal/service"
	"procurement/internal/workflow"

	"github.com/rs/zerolog"
)

type store interface {
	service.Repository
	AddUser(ctx context.Context, u models.User) (models.User, error)
	Close() error
}

type App struct {
	repo       store
	service    *service.Service
	controller *controller.Controller
	log        zerolog.Logger
	stopSig    chan os.Signal
	cfg        *config.Config

	Done chan struct{}
}

type option func(*App)

func WithConfig(cfg *config.Config) option {
	return func(app *App) {
		app.cfg = cfg
	}
}

func NewApp(opts ...option) (*App, error) {
	app := &App{
		stopSig: make(chan os.Signal, 2),
		Done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.cfg == nil {
		cfg, err := config.NewConfig()
		if err != nil {
			return nil, err
		}
		app.cfg = cfg
	}

	app.log = logging.New(logging.Config{Level: app.cfg.LogLevel, Format: app.cfg.LogFormat})

	switch app.cfg.Storage {
	case config.StorageMemory:
		app.repo = memory.NewStore()
	default:
		repo, err := repository.NewRepository(nil, &app.cfg.PostgresConfig)
		if err != nil {
			return nil, err
		}
		app.repo = repo
	}

	app.service = service.NewService(app.repo,
		service.WithAdminRole(app.cfg.AdminRole),
		service.WithLogger(app.log),
	)
	app.controller = controller.NewController(app.service, app.log)

	if len(app.cfg.WorkflowSeedFile) > 0 {
		err := app.seed(context.Background(), app.cfg.WorkflowSeedFile)
		if err != nil {
			app.repo.Close()
			return nil, err
		}
	}

	return app, nil
}

// seed installs the approval chain from path when none is configured yet,
// and adds the users listed in the file that do not exist.
func (app *App) seed(ctx context.Context, path string) error {
	seed, err := workflow.LoadSeed(path)
	if err != nil {
		return fmt.Errorf("app.App.seed: %w", err)
	}

	w, created, err := app.service.EnsureWorkflow(ctx, seed.Roles)
	if err != nil {
		return fmt.Errorf("app.App.seed: %w", err)
	}
	if created {
		app.log.Info().Int("version", w.Version).Strs("roles", w.Roles).Msg("approval workflow seeded")
	}

	for _, u := range seed.Users {
		_, ok, err := app.repo.UserByUsername(ctx, u.Username)
		if err != nil {
			return fmt.Errorf("app.App.seed: %w", err)
		}
		if ok {
			continue
		}
		if _, err = app.repo.AddUser(ctx, u); err != nil {
			return fmt.Errorf("app.App.seed: %w", err)
		}
		app.log.Debug().Str("username", u.Username).Str("role", u.RoleId).Msg("user seeded")
	}

	return nil
}

func (app *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		signal.Notify(app.stopSig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		sig := <-app.stopSig
		app.log.Info().Str("signal", sig.String()).Msg("received signal")
		cancel()
	}()

	server := http.Server{
		Addr:         app.cfg.ServerAddress,
		Handler:      router.NewRouter(app.controller, app.log),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			app.log.Error().Err(err).Msg("http server error")
		}
	}()

	app.log.Info().Str("address", app.cfg.ServerAddress).Str("storage", app.cfg.Storage).Msg("server started, listening for connections")
	<-ctx.Done()

	timeout, tcancel := context.WithTimeout(context.Background(), time.Second*10)
	defer tcancel()
	app.log.Info().Msg("shutting down http server")
	server.Shutdown(timeout)

	app.log.Info().Msg("closing repository")
	err := app.repo.Close()
	if err != nil {
		app.log.Error().Err(err).Msg("repository closing error")
	}

	close(app.Done)
	app.log.Info().Msg("exiting app")
}
