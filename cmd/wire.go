package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/ai"
	"github.com/pitchpilot/outreach/internal/ai/gemini"
	"github.com/pitchpilot/outreach/internal/filtering"
	"github.com/pitchpilot/outreach/internal/mailer"
	"github.com/pitchpilot/outreach/internal/outreach"
	"github.com/pitchpilot/outreach/internal/replies"
	"github.com/pitchpilot/outreach/internal/secrets"
	"github.com/pitchpilot/outreach/internal/store/memory"
	"github.com/pitchpilot/outreach/internal/store/postgres"
)

// engine is everything a command needs, built once from Config.
type engine struct {
	config    *Config
	logger    *zap.Logger
	store     outreach.Store
	pg        *postgres.Store
	mail      *mailer.Service
	cred      mailer.Credential
	matcher   *replies.Matcher
	svc       *outreach.Service
	followUps *outreach.FollowUps
}

func newEngine(ctx context.Context, config *Config, logger *zap.Logger) (*engine, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if strings.TrimSpace(config.OwnerID) == "" {
		return nil, errors.New("owner-id is required")
	}

	e := &engine{config: config, logger: logger}

	if err := e.openStore(ctx); err != nil {
		return nil, err
	}

	drafter, err := newDrafter(ctx, config.AI, logger)
	if err != nil {
		e.Close()
		return nil, err
	}

	if err := e.openMail(); err != nil {
		e.Close()
		return nil, err
	}

	registry := outreach.NewRegistry(e.store, logger)

	e.matcher = replies.NewMatcher(e.mail, registry, e.store, replies.Options{
		Query:     config.Replies.Query,
		Heuristic: config.Replies.Heuristic,
	}, logger)
	for _, name := range config.Replies.Disable {
		filtering.DisableByName(e.matcher.Filters(), name, "disabled in config")
	}

	e.svc = outreach.NewService(outreach.Deps{
		Store:    e.store,
		Registry: registry,
		Drafter:  drafter,
		Mailer:   e.mail,
		Replies:  e.matcher,
	}, logger)

	e.followUps = outreach.NewFollowUps(e.svc, outreach.FollowUpOptions{
		Credential:  e.cred,
		Window:      config.FollowUp.Window,
		MaxAttempts: config.FollowUp.MaxAttempts,
	})

	return e, nil
}

func (e *engine) Close() {
	if e.pg != nil {
		e.pg.Close()
	}
}

func (e *engine) openStore(ctx context.Context) error {
	cfg := e.config.Store

	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "memory":
		e.logger.Warn("using in-memory store, data is lost on exit",
			zap.String("hint", "leads, campaigns and follow-ups are not shared between commands"),
		)
		e.store = memory.New()
		return nil
	case "", "postgres":
		url, err := secrets.Load(secrets.Source{
			Name:  "database url",
			Value: cfg.DatabaseURL,
			File:  cfg.DatabaseURLFile,
		})
		if err != nil {
			return fmt.Errorf("%w (set DATABASE_URL or store.database-url-file)", err)
		}

		pg, err := postgres.New(ctx, url)
		if err != nil {
			return err
		}

		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				pg.Close()
				return err
			}
		}

		e.pg = pg
		e.store = pg
		return nil
	default:
		return fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

func newDrafter(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Optional(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	genCfg := gemini.Config{
		Model:        cfg.Gemini.Model,
		MaxLogLength: cfg.Gemini.MaxLogLength,
	}

	opts := ai.Options{
		APIKey:       apiKey,
		Factory:      gemini.NewFactory(genCfg, logger),
		Timeout:      cfg.Timeout,
		AttemptDelay: cfg.AttemptDelay,
	}

	if apiKey == "" {
		logger.Warn("gemini api key is not configured, drafts use the built-in template",
			zap.String("hint", "set GEMINI_API_KEY or ai.gemini.api-key-file"),
		)
	} else {
		shared, err := gemini.New(ctx, apiKey, genCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("building gemini provider: %w", err)
		}
		opts.Shared = shared
	}

	return ai.NewGenerator(opts, logger), nil
}

func (e *engine) openMail() error {
	cfg := e.config.Mail

	sender := strings.TrimSpace(cfg.Gmail.Sender)

	var transport mailer.Transport
	switch name := strings.ToLower(strings.TrimSpace(cfg.Transport)); name {
	case "", "gmail":
		transport = &mailer.GmailTransport{RedirectURL: cfg.Gmail.RedirectURL}
	case "smtp":
		password, err := secrets.Optional(secrets.Source{
			Name:  "smtp password",
			Value: cfg.SMTP.Password,
			File:  cfg.SMTP.PasswordFile,
		})
		if err != nil {
			return err
		}
		transport = &mailer.SMTPTransport{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: password,
		}
		if from := strings.TrimSpace(cfg.SMTP.From); from != "" {
			sender = from
		}
	default:
		return fmt.Errorf("unsupported mail transport: %s", cfg.Transport)
	}

	secret, err := secrets.Optional(secrets.Source{
		Name:  "gmail client secret",
		Value: cfg.Gmail.ClientSecret,
		File:  cfg.Gmail.ClientSecretFile,
	})
	if err != nil {
		return err
	}

	refresh, err := secrets.Optional(secrets.Source{
		Name:  "gmail refresh token",
		Value: cfg.Gmail.RefreshToken,
		File:  cfg.Gmail.RefreshTokenFile,
	})
	if err != nil {
		return err
	}

	e.cred = mailer.Credential{
		ClientID:     strings.TrimSpace(cfg.Gmail.ClientID),
		ClientSecret: secret,
		RefreshToken: refresh,
		Sender:       sender,
	}
	e.mail = mailer.NewService(transport, cfg.Timeout, e.logger)

	// Missing credentials only matter once something is sent, so this is
	// reported but not fatal.
	if err := transport.Check(e.cred); err != nil {
		e.logger.Warn("mail transport is not ready", zap.Error(err))
	}

	return nil
}
