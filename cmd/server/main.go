package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-session-server/auth"
	"github.com/jrsteele09/go-auth-session-server/internal/config"
	"github.com/jrsteele09/go-auth-session-server/internal/database"
	"github.com/jrsteele09/go-auth-session-server/internal/logging"
	"github.com/jrsteele09/go-auth-session-server/mail"
	"github.com/jrsteele09/go-auth-session-server/opaquetokens"
	tokenmongorepo "github.com/jrsteele09/go-auth-session-server/opaquetokens/mongorepo"
	"github.com/jrsteele09/go-auth-session-server/server"
	"github.com/jrsteele09/go-auth-session-server/sessions"
	"github.com/jrsteele09/go-auth-session-server/sessions/redisstore"
	"github.com/jrsteele09/go-auth-session-server/token"
	"github.com/jrsteele09/go-auth-session-server/users"
	usermongorepo "github.com/jrsteele09/go-auth-session-server/users/mongorepo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	logger := logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	app, err := compose(c, logger)
	if err != nil {
		return err
	}
	defer app.close()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           app.server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer, logger)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-waitForStopSignal():
	}
	return shutdown(httpServer, app, logger)
}

// application owns everything that must be released on shutdown
type application struct {
	server  *server.Server
	auth    *auth.Service
	closers []func(ctx context.Context) error
}

func (a *application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Error().Err(err).Msg("close failed")
		}
	}
}

// compose connects the stores and wires every service. Any failure here aborts boot.
func compose(c config.Config, logger zerolog.Logger) (*application, error) {
	app := &application{}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, mongoClient, err := database.ConnectMongo(ctx, c.GetMongoURI(), c.GetMongoDatabase(), logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, mongoClient.Disconnect)

	rdb, err := database.ConnectRedis(ctx, c.GetRedisURL(), logger)
	if err != nil {
		app.close()
		return nil, err
	}
	app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })

	userRepo := usermongorepo.New(db)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		app.close()
		return nil, errors.Wrap(err, "[compose] user indexes")
	}
	tokenRepo := tokenmongorepo.New(db)
	if err := tokenRepo.EnsureIndexes(ctx); err != nil {
		app.close()
		return nil, errors.Wrap(err, "[compose] opaque token indexes")
	}

	tokens, err := token.NewManager(c.GetAccessTokenSecret(), c.GetRefreshTokenSecret(),
		token.WithAccessTokenExpiry(c.GetAccessTokenExpiry()),
		token.WithRefreshTokenExpiry(c.GetRefreshTokenExpiry()),
	)
	if err != nil {
		app.close()
		return nil, err
	}

	usersService, err := users.NewService(userRepo, users.NewBcryptHasher(c.GetSaltRounds()))
	if err != nil {
		app.close()
		return nil, err
	}
	sessionsService, err := sessions.NewService(redisstore.New(rdb), sessions.WithLogger(logger))
	if err != nil {
		app.close()
		return nil, err
	}
	mailTokens, err := opaquetokens.NewService(tokenRepo, opaquetokens.WithExpiry(c.GetOpaqueTokenExpiry()))
	if err != nil {
		app.close()
		return nil, err
	}
	mailer, err := mail.NewSender(c, c.IsDevelopment(), logger)
	if err != nil {
		app.close()
		return nil, err
	}

	app.auth, err = auth.NewService(auth.Services{
		Users:      usersService,
		Sessions:   sessionsService,
		MailTokens: mailTokens,
		Mailer:     mailer,
	}, tokens, auth.WithLogger(logger))
	if err != nil {
		app.close()
		return nil, err
	}

	app.server, err = server.New(c, server.Dependencies{
		Auth:   app.auth,
		Users:  usersService,
		Tokens: tokens,
		Checks: map[string]server.Pinger{
			"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}, server.WithLogger(logger))
	if err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func listenAndServe(httpServer *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", httpServer.Addr).Msg("Server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server.ListenAndServe")
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

// shutdown drains HTTP traffic first, then waits for in-flight email dispatches.
func shutdown(httpServer *http.Server, app *application, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	app.server.Close()
	app.auth.Wait()
	logger.Info().Msg("Shutdown complete")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
