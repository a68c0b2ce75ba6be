package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gametrack/internal/auth"
	"gametrack/internal/catalog/igdb"
	"gametrack/internal/catalog/twitch"
	"gametrack/internal/config"
	"gametrack/internal/friends"
	"gametrack/internal/games"
	"gametrack/internal/http_server/cookies"
	acceptfriendship "gametrack/internal/http_server/handlers/accept_friendship"
	browsegames "gametrack/internal/http_server/handlers/browse_games"
	createfriendship "gametrack/internal/http_server/handlers/create_friendship"
	friendgames "gametrack/internal/http_server/handlers/friend_games"
	"gametrack/internal/http_server/handlers/isloggedin"
	listfriends "gametrack/internal/http_server/handlers/list_friends"
	"gametrack/internal/http_server/handlers/login"
	"gametrack/internal/http_server/handlers/logout"
	markgame "gametrack/internal/http_server/handlers/mark_game"
	"gametrack/internal/http_server/handlers/refresh"
	"gametrack/internal/http_server/handlers/register"
	resend "gametrack/internal/http_server/handlers/resend_verification_email"
	searchusers "gametrack/internal/http_server/handlers/search_users"
	usergames "gametrack/internal/http_server/handlers/user_games"
	"gametrack/internal/http_server/handlers/verify"
	"gametrack/internal/lib/jwt"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/lib/password"
	"gametrack/internal/lib/verification"
	"gametrack/internal/middleware/ratelimit"
	"gametrack/internal/middleware/requireauth"
	"gametrack/internal/rabbitmq"
	"gametrack/internal/session"
	"gametrack/internal/storage/postgres"
	"gametrack/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type services struct {
	auth      *auth.Auth
	games     *games.Service
	friends   *friends.Service
	tokens    *jwt.Manager
	denylist  *redis.RedisRepo
	lifetimes cookies.Lifetimes
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting gametrack", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", sl.Err(err))
		os.Exit(1)
	}
	defer storage.Close()

	denylist, err := redis.New(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", sl.Err(err))
		os.Exit(1)
	}
	defer denylist.Close()

	msgBroker, err := rabbitmq.New(log, cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", sl.Err(err))
		os.Exit(1)
	}
	defer msgBroker.Close()

	httpClient := &http.Client{Timeout: cfg.Catalog.Timeout}

	twitchTokens := twitch.New(log, httpClient, cfg.Catalog.TwitchTokenURL, cfg.Catalog.ClientID, cfg.Catalog.ClientSecret)
	if err := twitchTokens.Run(ctx, cfg.Catalog.RefreshInterval); err != nil {
		log.Error("failed to fetch catalog access token", sl.Err(err))
		os.Exit(1)
	}

	catalog := igdb.New(log, httpClient, cfg.Catalog.IGDBURL, cfg.Catalog.ClientID, twitchTokens)

	tokens := jwt.NewManager(
		cfg.Tokens.AccessTokenSecret,
		cfg.Tokens.RefreshTokenSecret,
		cfg.Tokens.AccessTokenTTL,
		cfg.Tokens.RefreshTokenTTL,
	)

	sessions := session.New(log, tokens, storage)
	go sessions.RunPruner(ctx, cfg.Sessions.PruneInterval)

	authService := auth.New(
		log,
		storage,
		storage,
		sessions,
		tokens,
		denylist,
		msgBroker,
		password.NewHasher(cfg.Auth.SecretKey),
		auth.Options{
			Mail: verification.Mail{
				AppName:     cfg.Auth.AppName,
				FrontendURL: cfg.Auth.FrontendURL,
				Sender:      cfg.Auth.EmailSender,
			},
			RequireVerifiedEmail: cfg.Auth.RequireVerifiedEmail,
			RevokeOnLogout:       cfg.Sessions.RevokeOnLogout,
		},
	)

	router := setupRouter(log, cfg.HTTPServer.AllowedOrigin, services{
		auth:     authService,
		games:    games.New(log, storage, catalog),
		friends:  friends.New(log, storage, catalog),
		tokens:   tokens,
		denylist: denylist,
		lifetimes: cookies.Lifetimes{
			AccessToken:  cfg.Tokens.AccessTokenTTL,
			RefreshToken: cfg.Tokens.RefreshTokenTTL,
		},
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout + cfg.Catalog.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("gametrack stopped")
}

func setupRouter(log *slog.Logger, allowedOrigin string, s services) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requireAuth := requireauth.New(log, s.tokens, s.denylist)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(ratelimit.Register()).Post("/register", register.New(log, validate, s.auth))
			r.With(ratelimit.VerifyEmail()).Get("/verify-email/{token}", verify.New(log, s.auth, s.lifetimes))
			r.With(ratelimit.ResendVerificationEmail()).Post("/verify/resend", resend.New(log, validate, s.auth))
			r.With(ratelimit.Login()).Post("/login", login.New(log, validate, s.auth, s.lifetimes))
			r.With(ratelimit.Refresh()).Post("/refresh-token", refresh.New(log, s.auth, s.lifetimes.AccessToken))
			r.With(ratelimit.Logout()).Post("/logout", logout.New(log, s.auth))
			r.With(requireAuth).Get("/is-logged-in", isloggedin.New(log, s.auth))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.With(ratelimit.Catalog()).Get("/games", browsegames.New(log, s.games))

			r.Get("/users", searchusers.New(log, validate, s.friends))
			r.Post("/users/me/games", markgame.New(log, validate, s.games))
			r.With(ratelimit.Catalog()).Get("/users/me/games", usergames.New(log, s.games))
			r.Get("/users/me/friends", listfriends.New(log, s.friends))

			r.Post("/friends", createfriendship.New(log, validate, s.friends))
			r.Put("/friends/{friendshipId}/accept", acceptfriendship.New(log, s.friends))
			r.With(ratelimit.Catalog()).Get("/friends/{friendId}", friendgames.New(log, s.friends))
		})
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
