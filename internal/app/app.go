package app

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"kora/internal/channel"
	"kora/internal/chat"
	"kora/internal/config"
	"kora/internal/eventbus"
	"kora/internal/httpapi"
	"kora/internal/llm"
	"kora/internal/memory"
	"kora/internal/observability"
	"kora/internal/security"
)

const (
	keyringPlaceholder      = "[keyring]"
	secretNameLLMKey        = "llm_api_key"
	secretNameFallbackKey   = "fallback_api_key"
	secretNameTelegramToken = "telegram_token"
)

// App owns the wiring of every subsystem and their lifecycle.
type App struct {
	cancel    context.CancelFunc
	cfg       *config.Config
	cfgLoader *config.Loader
	bus       *eventbus.Bus
	svc       *chat.Service
	chanMgr   *channel.Manager
	mem       memory.Memory
	keyStore  *security.KeyStore
	sanitizer *security.Sanitizer
	client    *llm.Client
	sweeper   *memory.RetentionSweeper
	httpSrv   *http.Server
}

func New() *App {
	return &App{
		bus: eventbus.New(),
	}
}

// Start loads configuration, resolves secrets, opens storage and brings
// every configured surface up. It returns once the app is running.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	log := observability.Logger()

	loader, err := config.NewLoader()
	if err != nil {
		return err
	}
	a.cfgLoader = loader

	cfg, err := loader.Load()
	if err != nil {
		log.Warn("failed to load config, using defaults", "error", err)
		cfg = config.Defaults()
		config.ApplyEnv(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	ks, err := security.NewKeyStore(nil)
	if err != nil {
		log.Warn("failed to create key store, secrets will stay in config file", "error", err)
	}
	a.keyStore = ks

	a.resolveSecrets()

	a.sanitizer = security.NewSanitizer(cfg.Security.PIIFiltering)

	dbPath := cfg.Memory.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(loader.DataDir(), "memory.db")
	}
	mem, err := memory.NewSQLiteMemory(dbPath)
	if err != nil {
		return err
	}
	a.mem = mem

	a.sweeper = memory.NewRetentionSweeper(mem, cfg.Memory.RetentionDays, cfg.Memory.SweepSchedule, log)
	if err := a.sweeper.Start(); err != nil {
		log.Error("failed to start retention sweeper", "error", err)
	}

	a.client = llm.NewFromConfig(cfg, log)

	a.chanMgr = channel.NewManager()
	if cfg.Channels.Console {
		a.chanMgr.Register(channel.NewConsoleChannel())
	}
	if cfg.Channels.Telegram != nil && cfg.Channels.Telegram.Token != "" {
		a.chanMgr.Register(channel.NewTelegramChannel(channel.TelegramConfig{
			Token:      cfg.Channels.Telegram.Token,
			AllowedIDs: cfg.Channels.Telegram.AllowedIDs,
		}))
	}

	a.svc = chat.New(cfg.Agent, a.client, mem, a.bus, a.sanitizer, a.chanMgr)

	a.bus.Subscribe(eventbus.TopicError, func(e eventbus.Event) {
		log.Error("event", "topic", e.Topic, "payload", e.Payload)
	})
	a.bus.Subscribe(eventbus.TopicProviderFallback, func(e eventbus.Event) {
		log.Warn("provider degraded", "payload", e.Payload)
	})

	if err := a.chanMgr.StartAll(ctx); err != nil {
		log.Error("failed to start channels", "error", err)
	}
	a.svc.Start(ctx)

	if cfg.Server.Enabled {
		a.httpSrv = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           httpapi.NewServer(a.svc, a.statusSnapshot),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("http server listening", "addr", cfg.Server.Addr)
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server failed", "error", err)
			}
		}()
	}

	log.Info("kora started", "model", cfg.LLM.Model, "has_api_key", cfg.LLM.APIKey != "")
	return nil
}

// Stop shuts everything down in reverse order of startup.
func (a *App) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		a.httpSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if a.chanMgr != nil {
		a.chanMgr.StopAll(ctx)
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.mem != nil {
		a.mem.Close()
	}
	observability.Logger().Info("kora stopped")
}

// resolveSecrets loads secrets from the key store into in-memory config.
// On first run, migrates plaintext secrets from config.json to the store.
func (a *App) resolveSecrets() {
	if a.keyStore == nil {
		return
	}

	log := observability.Logger()
	migrated := false

	resolve := func(name string, value *string) {
		switch {
		case *value == keyringPlaceholder:
			if v, err := a.keyStore.Get(name); err == nil {
				*value = v
			} else {
				log.Warn("failed to read secret from key store", "secret", name, "error", err)
			}
		case *value != "":
			if err := a.keyStore.Set(name, *value); err == nil {
				migrated = true
				log.Info("migrated secret to secure storage", "secret", name)
			}
		}
	}

	resolve(secretNameLLMKey, &a.cfg.LLM.APIKey)
	if a.cfg.FallbackLLM != nil {
		resolve(secretNameFallbackKey, &a.cfg.FallbackLLM.APIKey)
	}
	if a.cfg.Channels.Telegram != nil {
		resolve(secretNameTelegramToken, &a.cfg.Channels.Telegram.Token)
	}

	// Rewrite config.json with placeholders instead of real keys
	if migrated {
		if err := a.saveConfig(); err != nil {
			log.Warn("failed to save config after secret migration", "error", err)
		}
	}
}

// saveConfig writes config to disk with secrets replaced by [keyring]
// placeholders. In-memory cfg always retains real keys; only the file
// gets placeholders.
func (a *App) saveConfig() error {
	if a.keyStore == nil {
		return a.cfgLoader.Save(a.cfg)
	}

	store := func(name, value string) bool {
		if value == "" || value == keyringPlaceholder {
			return true
		}
		if err := a.keyStore.Set(name, value); err != nil {
			observability.Logger().Warn("failed to store secret in key store", "secret", name, "error", err)
			return false
		}
		return true
	}

	ok := store(secretNameLLMKey, a.cfg.LLM.APIKey)
	if a.cfg.FallbackLLM != nil {
		ok = store(secretNameFallbackKey, a.cfg.FallbackLLM.APIKey) && ok
	}
	if a.cfg.Channels.Telegram != nil {
		ok = store(secretNameTelegramToken, a.cfg.Channels.Telegram.Token) && ok
	}
	if !ok {
		// fallback: save plaintext
		return a.cfgLoader.Save(a.cfg)
	}

	cfgForDisk := *a.cfg
	if cfgForDisk.LLM.APIKey != "" {
		cfgForDisk.LLM.APIKey = keyringPlaceholder
	}
	if cfgForDisk.FallbackLLM != nil && cfgForDisk.FallbackLLM.APIKey != "" {
		fbCopy := *cfgForDisk.FallbackLLM
		fbCopy.APIKey = keyringPlaceholder
		cfgForDisk.FallbackLLM = &fbCopy
	}
	if cfgForDisk.Channels.Telegram != nil && cfgForDisk.Channels.Telegram.Token != "" {
		tgCopy := *cfgForDisk.Channels.Telegram
		tgCopy.Token = keyringPlaceholder
		cfgForDisk.Channels.Telegram = &tgCopy
	}

	return a.cfgLoader.Save(&cfgForDisk)
}

// statusSnapshot reports runtime state for the status endpoint. API keys
// are reduced to booleans and a masked suffix.
func (a *App) statusSnapshot() map[string]any {
	s := map[string]any{
		"status":         "ok",
		"model":          a.cfg.LLM.Model,
		"has_api_key":    a.cfg.LLM.APIKey != "",
		"api_key_masked": security.MaskKey(a.cfg.LLM.APIKey),
		"has_fallback":   a.cfg.FallbackLLM != nil && a.cfg.FallbackLLM.APIKey != "",
		"pii_filtering":  a.cfg.Security.PIIFiltering.Enabled,
		"retention_days": a.cfg.Memory.RetentionDays,
	}
	if a.cfg.LLM.BaseURL != "" {
		s["base_url"] = a.cfg.LLM.BaseURL
	}
	if a.chanMgr != nil {
		s["channels"] = a.chanMgr.List()
	}
	return s
}
