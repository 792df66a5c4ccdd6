package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matt-steen/chore-board/pkg/api"
	"github.com/matt-steen/chore-board/pkg/board"
	"github.com/matt-steen/chore-board/pkg/config"
	"github.com/matt-steen/chore-board/pkg/controller"
	"github.com/matt-steen/chore-board/pkg/db"
	"github.com/matt-steen/chore-board/pkg/devserver"
	"github.com/matt-steen/chore-board/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	filePerms       = 0o666
	shutdownTimeout = 5 * time.Second
)

const usage = `usage: chore-board [-config file] [-env file] <command> [args]

commands:
  board <code> [-token edit-token]   open a board in the terminal
  new <title>                        create a board and print its code and edit token
  join <code> <nickname> [color]     join a board as a participant
  delete <code> <edit-token>         delete a board
  serve                              run the local board service
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("chore-board", flag.ContinueOnError)
	flags.Usage = func() { fmt.Fprint(flags.Output(), usage) }

	configFile := flags.String("config", "", "YAML config file")
	envFile := flags.String("env", "", "dotenv file (default .env)")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() == 0 {
		flags.Usage()

		return errors.New("missing command")
	}

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, rest := flags.Arg(0), flags.Args()[1:]

	switch command {
	case "board":
		return runBoard(ctx, cfg, rest)
	case "new":
		setupLogging(cfg, os.Stderr)

		return runNew(ctx, cfg, rest)
	case "join":
		setupLogging(cfg, os.Stderr)

		return runJoin(ctx, cfg, rest)
	case "delete":
		setupLogging(cfg, os.Stderr)

		return runDelete(ctx, cfg, rest)
	case "serve":
		setupLogging(cfg, os.Stderr)

		return runServe(ctx, cfg)
	}

	flags.Usage()

	return fmt.Errorf("unknown command %q", command)
}

func setupLogging(cfg *config.Config, out io.Writer) {
	zerolog.SetGlobalLevel(cfg.LogLevel())

	log.Logger = log.With().Caller().Logger().Output(zerolog.ConsoleWriter{
		Out: out, TimeFormat: "2006-01-02_15:04:05",
	})
}

func newClient(cfg *config.Config) (*api.Client, error) {
	return api.NewClient(cfg.API.BaseURL, api.WithTimeout(cfg.API.Timeout), api.WithAuthToken(cfg.API.AuthToken))
}

// serveMetrics exposes the default registry on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics listener stopped")
		}
	}()
}

func runBoard(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("board", flag.ContinueOnError)
	token := flags.String("token", "", "edit token of the board")

	if len(args) == 0 {
		return errors.New("usage: chore-board board <code> [-token edit-token]")
	}

	code := args[0]
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	// the terminal belongs to the ui, so logs go to a file
	logFile, err := os.OpenFile(cfg.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, fs.FileMode(filePerms))
	if err != nil {
		return fmt.Errorf("error opening log file %s: %w", cfg.Log.File, err)
	}

	defer logFile.Close()

	setupLogging(cfg, logFile)

	log.Info().Str("board", code).Msg("starting application...")

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	opts := []board.Option{board.WithLogger(log.Logger)}

	if cfg.Server.MetricsListen != "" {
		opts = append(opts, board.WithMetrics(metrics.NewPrometheus(prometheus.DefaultRegisterer, "")))
		serveMetrics(ctx, cfg.Server.MetricsListen)
	}

	store := board.NewStore(client, opts...)

	if err := store.LoadBoard(ctx, code, *token); err != nil {
		return err
	}

	c, err := controller.NewController(ctx, store)
	if err != nil {
		return err
	}

	return c.Go()
}

func runNew(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: chore-board new <title>")
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	created, err := client.CreateBoard(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("board:      %s\ntitle:      %s\nedit token: %s\n", created.BoardCode, created.Title, created.EditToken)

	return nil
}

func runJoin(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: chore-board join <code> <nickname> [color]")
	}

	color := ""
	if len(args) == 3 {
		color = args[2]
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	user, err := client.JoinBoard(ctx, args[0], args[1], color)
	if err != nil {
		return err
	}

	fmt.Printf("joined %s as %s (participant %s)\n", args[0], user.Nickname, user.ID)

	return nil
}

func runDelete(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: chore-board delete <code> <edit-token>")
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	if err := client.DeleteBoard(ctx, args[0], args[1]); err != nil {
		return err
	}

	fmt.Printf("deleted %s\n", args[0])

	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	database, err := db.NewDatabase(ctx, cfg.Server.Database)
	if err != nil {
		return err
	}

	defer database.Close()

	opts := []devserver.Option{devserver.WithLogger(log.Logger), devserver.WithAuthToken(cfg.API.AuthToken)}

	if cfg.Server.MetricsListen != "" {
		opts = append(opts, devserver.WithRegisterer(prometheus.DefaultRegisterer))
		serveMetrics(ctx, cfg.Server.MetricsListen)
	}

	server := devserver.New(database, opts...)

	errs := make(chan error, 1)

	go func() {
		errs <- server.Start(cfg.Server.Listen)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
