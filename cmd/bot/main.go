package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Effex-D/twitch-bot/internal/bot"
	"github.com/Effex-D/twitch-bot/internal/config"
	"github.com/Effex-D/twitch-bot/internal/corpus"
	"github.com/Effex-D/twitch-bot/internal/domain"
	"github.com/Effex-D/twitch-bot/internal/eventsub"
	"github.com/Effex-D/twitch-bot/internal/httpserver"
	"github.com/Effex-D/twitch-bot/internal/platform/logging"
	"github.com/Effex-D/twitch-bot/internal/platform/version"
	"github.com/Effex-D/twitch-bot/internal/ratelimit"
	"github.com/Effex-D/twitch-bot/internal/sender"
	"github.com/Effex-D/twitch-bot/internal/twitch"
	"github.com/jonboulle/clockwork"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupCorpus(cfg *config.Config) *domain.PrizeCorpus {
	c, err := corpus.Load(cfg.PrizeWordsPath)
	if err != nil {
		slog.Error("Failed to load prize corpus", "path", cfg.PrizeWordsPath, "error", err)
		os.Exit(1)
	}
	return c
}

// setupIdentity validates the access token and resolves the bot and every
// configured broadcaster to user IDs. Any failure here means the bot
// cannot operate, so it exits rather than limping along.
func setupIdentity(cfg *config.Config, client *twitch.Client) (botUserID string, broadcasters []eventsub.Broadcaster) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := twitch.NewTokenValidator(cfg.BotUserAccessToken).Validate(ctx)
	if err != nil {
		slog.Error("Token validation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Token validated", "login", info.Login, "expires_in", info.ExpiresIn)

	if info.Login != cfg.BotLogin {
		slog.Error("Token belongs to a different account",
			"token_login", info.Login,
			"configured_login", cfg.BotLogin,
		)
		os.Exit(1)
	}

	users, err := client.ResolveUsers(cfg.Broadcasters)
	if err != nil {
		slog.Error("Failed to resolve broadcaster logins", "error", err)
		os.Exit(1)
	}

	for _, login := range cfg.Broadcasters {
		u := users[login]
		broadcasters = append(broadcasters, eventsub.Broadcaster{ID: u.ID, Login: u.Login})
	}
	return info.UserID, broadcasters
}

func runGracefulShutdown(cancel context.CancelFunc, srv *httpserver.Server, bucket *ratelimit.Bucket) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Status server shutdown error", "error", err)
		}

		bucket.Close()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Bot starting",
		"env", cfg.AppEnv,
		"version", version.Get().Version,
		"channels", len(cfg.Broadcasters),
	)

	prizeCorpus := setupCorpus(cfg)

	client, err := twitch.NewClient(twitch.ClientOptions{
		ClientID:        cfg.TwitchClientID,
		UserAccessToken: cfg.BotUserAccessToken,
	})
	if err != nil {
		slog.Error("Failed to create twitch client", "error", err)
		os.Exit(1)
	}

	botUserID, broadcasters := setupIdentity(cfg, client)

	bucket := ratelimit.NewBucket(cfg.SendRateCapacity, cfg.SendRateRefill, cfg.SendRateInterval, clock)

	var lights bot.LightsController
	if cfg.LightsAPIBase != "" {
		lights = bot.NewLightsClient(cfg.LightsAPIBase)
	}
	engine := bot.NewEngine(prizeCorpus, clock, lights, nil)

	replySender := sender.New(sender.Config{
		BotUserID:      botUserID,
		AcquireTimeout: cfg.SendAcquireTimeout,
	}, bucket, twitch.NewBreakerSender(client))

	manager := eventsub.NewManager(eventsub.Config{
		URL:          cfg.EventSubURL,
		BotUserID:    botUserID,
		Broadcasters: broadcasters,
	}, client, func(ctx context.Context, event domain.ChatEvent) {
		action := engine.Dispatch(ctx, event)
		replySender.Send(ctx, event, action)
	}, clock)

	srv := httpserver.NewServer(cfg.Port, manager)

	ctx, cancel := context.WithCancel(context.Background())
	done := runGracefulShutdown(cancel, srv, bucket)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Status server error", "error", err)
			os.Exit(1)
		}
	}()

	// Run blocks for the bot's whole life; it returns an error only when
	// the credential is rejected, which nothing but a new token can fix.
	if err := manager.Run(ctx); err != nil {
		slog.Error("EventSub session failed", "error", err)
		os.Exit(1)
	}

	<-done
}
