package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/EasterCompany/dex-voice-bridge/audio"
	"github.com/EasterCompany/dex-voice-bridge/bridge"
	"github.com/EasterCompany/dex-voice-bridge/cache"
	"github.com/EasterCompany/dex-voice-bridge/config"
	"github.com/EasterCompany/dex-voice-bridge/endpoints"
	"github.com/EasterCompany/dex-voice-bridge/health"
	"github.com/EasterCompany/dex-voice-bridge/interfaces"
	logger "github.com/EasterCompany/dex-voice-bridge/log"
	"github.com/EasterCompany/dex-voice-bridge/metrics"
	"github.com/EasterCompany/dex-voice-bridge/notes"
	"github.com/EasterCompany/dex-voice-bridge/realtime"
	"github.com/EasterCompany/dex-voice-bridge/session"
	"github.com/EasterCompany/dex-voice-bridge/system"
	"github.com/EasterCompany/dex-voice-bridge/voice"
	"github.com/EasterCompany/dex-voice-bridge/worker"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	noteQueueSize   = 64
	shutdownTimeout = 10 * time.Second
)

type App struct {
	Config   *config.AllConfig
	Session  *discordgo.Session
	Logger   logger.Logger
	Cache    *cache.DB
	Pool     *worker.Pool
	Metrics  *metrics.Metrics
	Registry *bridge.Registry
	HTTP     *http.Server
}

func NewApp(cfg *config.AllConfig) (*App, error) {
	s, err := session.NewSession(cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	db, cacheErr := cache.New(cfg.Redis)

	var out io.Writer = os.Stdout
	if db != nil && cfg.Redis.MirrorLogs {
		out = cache.NewLogWriter(db, os.Stdout)
	}
	appLogger := logger.NewDiscordLogger(s, cfg.Discord.LogChannelID, out)
	if cacheErr != nil {
		appLogger.Error("Failed to initialize cache", cacheErr)
	}

	notesDir, err := config.ExpandPath(cfg.Bridge.NotesDir)
	if err != nil {
		return nil, fmt.Errorf("invalid notes_dir: %w", err)
	}
	dumpPath, err := config.ExpandPath(cfg.Bridge.EventsDumpPath)
	if err != nil {
		return nil, fmt.Errorf("invalid events_dump_path: %w", err)
	}

	pool := worker.New(cfg.Bridge.NoteWorkers, noteQueueSize)

	fileNotes := notes.NewFileStore(notesDir)
	noteStores := notes.Stores{fileNotes}
	dumpers := realtime.Dumpers{realtime.NewFileDumper(dumpPath)}
	var recordings audio.RecordingStores
	if cfg.Bridge.CaptureDir != "" {
		captureDir, err := config.ExpandPath(cfg.Bridge.CaptureDir)
		if err != nil {
			return nil, fmt.Errorf("invalid capture_dir: %w", err)
		}
		recordings = append(recordings, audio.DirStore{Dir: captureDir})
	}
	if db != nil {
		noteStores = append(noteStores, db)
		dumpers = append(dumpers, db)
		if len(recordings) > 0 {
			recordings = append(recordings, db)
		}
	}

	dialer := realtime.NewDialer(realtime.Options{
		URL:              cfg.Realtime.URL,
		Model:            cfg.Realtime.Model,
		HandshakeTimeout: time.Duration(cfg.Realtime.HandshakeTimeoutSeconds) * time.Second,
		Dumper:           dumpers,
	})
	transport := interfaces.AITransportFunc(func(ctx context.Context, apiKey string) (interfaces.AIConn, error) {
		conn, err := dialer.Connect(ctx, apiKey)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})

	joinOpts := voice.JoinerOptions{}
	if len(recordings) > 0 {
		joinOpts.Recordings = recordings
	}
	joiner := voice.NewJoiner(s, appLogger, joinOpts)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry := bridge.NewRegistry(bridgeConfig(cfg), bridge.Deps{
		Voice: joiner,
		AI:    transport,
		Notes: notes.NewAsyncStore(pool, noteStores, func(err error) {
			appLogger.Error("Failed to save notes", err)
		}),
		NoteLoader:    fileNotes,
		Logger:        appLogger,
		Metrics:       m,
		OnStateChange: logTransitions(logger.New(os.Stdout)),
	})

	opts := endpoints.Options{
		Metrics: m,
		Sample: func() (system.Snapshot, error) {
			return system.Sample(notesDir)
		},
		Logger: appLogger,
	}
	if db != nil {
		opts.Cache = db
	}
	server := endpoints.New(endpoints.RegistrySessions{Registry: registry}, opts)

	return &App{
		Config:   cfg,
		Session:  s,
		Logger:   appLogger,
		Cache:    db,
		Pool:     pool,
		Metrics:  m,
		Registry: registry,
		HTTP: &http.Server{
			Addr:              cfg.Bridge.HTTPAddr,
			Handler:           server.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func bridgeConfig(cfg *config.AllConfig) bridge.Config {
	td := cfg.Realtime.TurnDetection
	return bridge.Config{
		APIKey:              cfg.Realtime.APIKey,
		Model:               cfg.Realtime.Model,
		DefaultVoice:        cfg.Bridge.DefaultVoice,
		DefaultInstructions: cfg.Bridge.DefaultInstructions,
		Speed:               cfg.Realtime.Speed,
		TurnDetection: realtime.TurnDetection{
			Type:              "server_vad",
			Threshold:         td.Threshold,
			PrefixPaddingMs:   td.PrefixPaddingMs,
			SilenceDurationMs: td.SilenceDurationMs,
			CreateResponse:    td.CreateResponse,
		},
		SilenceTimeout: time.Duration(cfg.Bridge.SilenceTimeoutMs) * time.Millisecond,
		EndCallGrace:   time.Duration(cfg.Bridge.EndCallGraceMs) * time.Millisecond,
		MuteDefault:    time.Duration(cfg.Bridge.MuteDefaultSeconds) * time.Second,
		MuteMax:        time.Duration(cfg.Bridge.MuteMaxSeconds) * time.Second,
	}
}

// logTransitions reports session lifecycle changes. It runs under the session
// lock, so l must write locally and never post to Discord or Redis.
func logTransitions(l logger.Logger) func(guildID string, from, to bridge.State) {
	return func(guildID string, from, to bridge.State) {
		l.Info(fmt.Sprintf("[%s] session %s -> %s", guildID, from, to))
	}
}

// Run connects to Discord and serves the HTTP API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}
	a.Pool.Start()

	serveErr := make(chan error, 1)
	go func() {
		if err := a.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	a.Logger.Info(a.bootReport())
	fmt.Println("Bridge is now running. Press CTRL-C to exit.")

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	a.shutdown()
	fmt.Println("Bridge shutting down.")
	return runErr
}

func (a *App) bootReport() string {
	var r health.Report
	if snap, err := system.Sample(os.TempDir()); err == nil {
		r.Add("CPU", fmt.Sprintf("`%.2f%%`", snap.CPUPercent))
		r.Add("Memory", fmt.Sprintf("`%.2f%%`", snap.MemoryPercent))
	}
	r.Add("Discord", health.GetDiscordStatus(a.Session))
	var pinger health.Pinger
	if a.Cache != nil {
		pinger = a.Cache
	}
	r.Add("Cache", health.GetCacheStatus(pinger, a.Config.Redis.Addr != ""))
	r.Add("Realtime", health.GetRealtimeStatus(a.Config.Realtime.APIKey, a.Config.Realtime.Model))
	r.Add("HTTP", fmt.Sprintf("`%s`", a.HTTP.Addr))
	return r.String()
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.drain(ctx)
	a.Pool.Stop()
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	_ = a.Session.Close()
}

// drain waits for in-flight requests to finish, then ends every session.
func (a *App) drain(ctx context.Context) {
	if err := a.HTTP.Shutdown(ctx); err != nil {
		a.Logger.Error("Failed to stop http server", err)
	}
	a.Registry.Shutdown(ctx)
}
