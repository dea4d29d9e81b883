package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"memebot/internal/audio"
	"memebot/internal/citizens"
	"memebot/internal/driver/discord"
	"memebot/internal/kernel"
	"memebot/internal/metrics"
	"memebot/internal/notify"
	"memebot/internal/registry"
	"memebot/internal/stats"
	"memebot/internal/store"
	"memebot/internal/voting"
	"memebot/modules/help"
	"memebot/modules/meme"
	"memebot/modules/vote"
	"memebot/pkg/memebot"
)

const (
	envConfigFile           = "MEMEBOT_CONFIG_FILE"
	defaultConfigFilePath   = "config/bot.json"
	alternateConfigFilePath = "bin/config/bot.json"

	envDiscordToken     = "DISCORD_TOKEN"
	envPushoverAppToken = "PUSHOVER_APP_TOKEN"
	envPushoverUserKey  = "PUSHOVER_USER_KEY"
	envAdminUserID      = "ADMIN_USER_ID"

	// Merges run ten minutes past every hour; debug mode merges every minute.
	mergeSchedule      = "10 * * * *"
	debugMergeSchedule = "* * * * *"

	defaultDataDir         = "data"
	defaultAudioDir        = "audio"
	defaultCrashLogPath    = "logs/stats-crash.log"
	defaultMergeTimeout    = 30 * time.Second
	defaultShutdownFlush   = 10 * time.Second
	defaultModuleHookTime  = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultHandlerTimeout  = 30 * time.Second
	defaultQueueSize       = 256
	defaultPublishTimeout  = 2 * time.Second
	metricsShutdownTimeout = 5 * time.Second
)

type appConfig struct {
	logLevel slog.Level
	debug    bool

	dataDir       string
	audioDir      string
	crashLogPath  string
	metricsListen string

	moduleHookTimeout time.Duration
	shutdownTimeout   time.Duration
	handlerTimeout    time.Duration
	queueSize         int
	publishTimeout    time.Duration

	discordToken     string
	pushoverAppToken string
	pushoverUserKey  string
	adminUserID      string
}

type fileConfig struct {
	LogLevel      string            `json:"log_level"`
	Debug         *bool             `json:"debug"`
	DataDir       string            `json:"data_dir"`
	AudioDir      string            `json:"audio_dir"`
	CrashLog      string            `json:"crash_log"`
	MetricsListen string            `json:"metrics_listen"`
	Kernel        fileKernelConfig  `json:"kernel"`
	Discord       fileDiscordConfig `json:"discord"`
}

type fileKernelConfig struct {
	ModuleHookTimeout string `json:"module_hook_timeout"`
	ShutdownTimeout   string `json:"shutdown_timeout"`
	HandlerTimeout    string `json:"handler_timeout"`
	QueueSize         *int   `json:"queue_size"`
}

type fileDiscordConfig struct {
	PublishTimeout string `json:"publish_timeout"`
}

func run() error {
	// Hoists .env into the process environment; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	backing := store.New(cfg.dataDir, logger)
	memeRegistry := registry.New(backing, registry.WithLogger(logger))
	if err := memeRegistry.Load(); err != nil {
		return err
	}
	ledger := citizens.New(backing, citizens.WithLogger(logger))
	if err := ledger.Load(); err != nil {
		return err
	}
	aggregator := stats.New(cfg.dataDir, cfg.crashLogPath, stats.WithLogger(logger))
	engine := voting.New(memeRegistry, ledger, voting.WithLogger(logger))

	assetStore, err := audio.NewStore(cfg.audioDir)
	if err != nil {
		return fmt.Errorf("open asset store: %w", err)
	}
	producer := audio.NewProducer(assetStore, audio.WithProducerLogger(logger))

	session, err := discord.NewSession(cfg.discordToken)
	if err != nil {
		return fmt.Errorf("new discord session: %w", err)
	}
	player := audio.NewPlayer(session, assetStore, producer.Blocked, audio.WithPlayerLogger(logger))
	sender := discord.NewSender(session, logger)

	notifier := notify.New(cfg.pushoverAppToken, cfg.pushoverUserKey, notify.WithLogger(logger))
	collector := metrics.NewCollector()

	kernelRuntime := kernel.New(
		kernel.WithLogger(logger),
		kernel.WithNotifier(notifier),
		kernel.WithModuleHookTimeout(cfg.moduleHookTimeout),
		kernel.WithShutdownTimeout(cfg.shutdownTimeout),
		kernel.WithHandlerTimeout(cfg.handlerTimeout),
		kernel.WithQueueSize(cfg.queueSize),
	)

	services := map[string]any{
		memebot.ServiceLogger:          logger,
		memebot.ServiceMessageSender:   memebot.MessageSender(sender),
		memebot.ServiceMemeRegistry:    memeRegistry,
		memebot.ServiceCitizenLedger:   ledger,
		memebot.ServiceVotingEngine:    engine,
		memebot.ServiceStatsAggregator: aggregator,
		memebot.ServiceAssetProducer:   memebot.AssetProducer(producer),
		memebot.ServiceAssetStore:      memebot.AssetStore(assetStore),
		memebot.ServiceAudioPlayer:     memebot.AudioPlayer(player),
		memebot.ServiceMetrics:         collector,
	}
	for name, service := range services {
		if err := kernelRuntime.RegisterService(name, service); err != nil {
			return fmt.Errorf("register service %s: %w", name, err)
		}
	}

	registerCtx := context.Background()
	modules := []memebot.Module{
		meme.New(meme.WithAdminID(cfg.adminUserID), meme.WithLogger(logger)),
		vote.New(vote.WithLogger(logger)),
		help.New(),
	}
	for _, module := range modules {
		if err := kernelRuntime.RegisterModule(registerCtx, module); err != nil {
			return fmt.Errorf("register %s module: %w", module.Name(), err)
		}
	}

	discordDriver, err := discord.NewDriver(
		session,
		discord.NewDefaultDecoder(),
		discord.WithLogger(logger),
		discord.WithPublishTimeout(cfg.publishTimeout),
	)
	if err != nil {
		return fmt.Errorf("new discord driver: %w", err)
	}
	if err := kernelRuntime.RegisterDriver(discordDriver); err != nil {
		return fmt.Errorf("register discord driver: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(selectMergeSchedule(cfg.debug), func() {
		mergeCtx, cancel := context.WithTimeout(context.Background(), defaultMergeTimeout)
		defer cancel()
		if err := aggregator.Merge(mergeCtx); err != nil {
			if errors.Is(err, memebot.ErrContention) {
				collector.RecordLockTimeout()
			}
			collector.RecordMerge("error")
			logger.Error("merge stats", "error", err)
			return
		}
		collector.RecordMerge("ok")
	}); err != nil {
		return fmt.Errorf("schedule stats merge: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	stopMetrics := startMetricsListener(cfg.metricsListen, collector, logger)
	defer stopMetrics()

	runErr := kernelRuntime.Run(ctx)

	// Pending counters survive shutdown only through the durable file.
	flushCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownFlush)
	defer cancel()
	if err := aggregator.Flush(flushCtx); err != nil {
		logger.Error("flush stats on shutdown", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run kernel: %w", runErr)
	}

	return nil
}

func selectMergeSchedule(debug bool) string {
	if debug {
		return debugMergeSchedule
	}

	return mergeSchedule
}

// startMetricsListener serves /metrics when an address is configured. The
// returned stop function is safe to call either way.
func startMetricsListener(listen string, collector *metrics.Collector, logger *slog.Logger) func() {
	if listen == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	server := &http.Server{Addr: listen, Handler: mux}

	go func() {
		logger.Info("metrics listener started", "addr", listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("stop metrics listener", "error", err)
		}
	}
}

func loadConfig() (appConfig, error) {
	cfg := defaultAppConfig()

	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}
	if configFile != "" {
		if err := applyConfigFile(&cfg, configFile); err != nil {
			return appConfig{}, err
		}
	}
	applyEnvironment(&cfg)

	if cfg.discordToken == "" {
		return appConfig{}, fmt.Errorf("%s is required", envDiscordToken)
	}

	return cfg, nil
}

// resolveConfigFilePath returns the configured file path, or the empty string
// when no config file exists; environment variables alone are enough to run.
func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	for _, candidate := range []string{defaultConfigFilePath, alternateConfigFilePath} {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", nil
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel: slog.LevelInfo,

		dataDir:      defaultDataDir,
		audioDir:     defaultAudioDir,
		crashLogPath: defaultCrashLogPath,

		moduleHookTimeout: defaultModuleHookTime,
		shutdownTimeout:   defaultShutdownTimeout,
		handlerTimeout:    defaultHandlerTimeout,
		queueSize:         defaultQueueSize,
		publishTimeout:    defaultPublishTimeout,
	}
}

func applyConfigFile(cfg *appConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}
	if parsed.Debug != nil {
		cfg.debug = *parsed.Debug
	}
	if dir := strings.TrimSpace(parsed.DataDir); dir != "" {
		cfg.dataDir = dir
	}
	if dir := strings.TrimSpace(parsed.AudioDir); dir != "" {
		cfg.audioDir = dir
	}
	if crashLog := strings.TrimSpace(parsed.CrashLog); crashLog != "" {
		cfg.crashLogPath = crashLog
	}
	cfg.metricsListen = strings.TrimSpace(parsed.MetricsListen)

	if err := applyDuration(&cfg.moduleHookTimeout, parsed.Kernel.ModuleHookTimeout, "kernel.module_hook_timeout"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.shutdownTimeout, parsed.Kernel.ShutdownTimeout, "kernel.shutdown_timeout"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.handlerTimeout, parsed.Kernel.HandlerTimeout, "kernel.handler_timeout"); err != nil {
		return err
	}
	if parsed.Kernel.QueueSize != nil {
		if *parsed.Kernel.QueueSize <= 0 {
			return fmt.Errorf("parse kernel.queue_size: must be > 0")
		}
		cfg.queueSize = *parsed.Kernel.QueueSize
	}
	if err := applyDuration(&cfg.publishTimeout, parsed.Discord.PublishTimeout, "discord.publish_timeout"); err != nil {
		return err
	}

	return nil
}

func applyDuration(target *time.Duration, raw, field string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	parsed, err := time.ParseDuration(trimmed)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	if parsed <= 0 {
		return fmt.Errorf("parse %s: must be > 0", field)
	}
	*target = parsed

	return nil
}

func applyEnvironment(cfg *appConfig) {
	cfg.discordToken = strings.TrimSpace(os.Getenv(envDiscordToken))
	cfg.pushoverAppToken = strings.TrimSpace(os.Getenv(envPushoverAppToken))
	cfg.pushoverUserKey = strings.TrimSpace(os.Getenv(envPushoverUserKey))
	cfg.adminUserID = strings.TrimSpace(os.Getenv(envAdminUserID))
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
