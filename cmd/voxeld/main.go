package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"voxeledit.ai/internal/logger"
	"voxeledit.ai/internal/persistence/indexdb"
	persistlog "voxeledit.ai/internal/persistence/log"
	"voxeledit.ai/internal/sim/catalogs"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/tuning"
	"voxeledit.ai/internal/sim/world"
	"voxeledit.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (default: observer.listen from tuning)")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		logLevel   = flag.String("log_level", "", "log level override (debug, info, warn, error)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite frame index")
		disableLog = flag.Bool("disable_frame_log", false, "disable the compressed frame log")
	)
	flag.Parse()

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			_, _ = os.Stderr.WriteString("load tuning: " + err.Error() + "\n")
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	if *logLevel != "" {
		tune.Log.Level = *logLevel
	}
	if *addr != "" {
		tune.Observer.Listen = *addr
	}
	tune.Index.Disable = tune.Index.Disable || *disableDB
	tune.FrameLog.Disable = tune.FrameLog.Disable || *disableLog

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	logFile := tune.Log.File
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(worldDir, logFile)
	}
	if err := logger.Init(tune.Log.Level, logFile); err != nil {
		_, _ = os.Stderr.WriteString("init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Component(logger.Log, "voxeld").With(zap.String("world", *worldID))
	log.Info("tuning loaded", zap.String("path", tp), zap.Int("chunk_edge", tune.ChunkEdge), zap.String("codec", tune.Codec))

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatal("load catalogs", zap.Error(err))
		}
		log.Warn("palette.json not found; using built-in palette", zap.String("configs", *configDir))
		cats = catalogs.Default()
	}

	w, err := world.New(world.WorldConfig{
		ID:        *worldID,
		ChunkEdge: tune.ChunkEdge,
		Codec:     tune.Codec,
		Cache: store.CacheConfig{
			MaxDecompressedBytes: tune.CacheBudgetBytes,
			MaxCompressPerPass:   tune.MaxCompressPerFrame,
		},
		Workers:        tune.Workers,
		FrameRateHz:    tune.FrameRateHz,
		MaxUndoHistory: tune.MaxUndoHistory,
		Palette:        cats.Palette,
	}, logger.Log)
	if err != nil {
		log.Fatal("world", zap.Error(err))
	}

	stats := newStatsSink()
	w.AddSink(stats)

	started := time.Now()
	if !tune.FrameLog.Disable {
		dir := tune.FrameLog.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(worldDir, filepath.Base(dir))
		}
		// Frame numbers restart with every process, so each session logs
		// to its own directory.
		dir = filepath.Join(dir, started.UTC().Format("20060102T150405Z"))
		frameLog := persistlog.NewFrameLoggerWithWriter(persistlog.NewJSONLZstdWriter(dir, "frames"))
		defer frameLog.Close()
		w.AddSink(frameLog)
	}

	var idx *indexdb.SQLiteIndex
	if !tune.Index.Disable {
		dbPath := tune.Index.Path
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(worldDir, "index", filepath.Base(dbPath))
		}
		idx, err = indexdb.OpenSQLite(dbPath, logger.Component(logger.Log, "indexdb"))
		if err != nil {
			log.Fatal("open index", zap.String("path", dbPath), zap.Error(err))
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			log.Warn("index: upsert catalogs", zap.Error(err))
		}
		w.AddSink(idx)
	}

	obs := observer.NewServer(w, cats, logger.Component(logger.Log, "observer"), observer.AllowRemote(tune.Observer.AllowRemote))
	w.AddSink(obs)

	ctx, cancel := signalContext()
	defer cancel()

	idx.RecordSession(*worldID, started, "start", w.Frame())

	runErr := make(chan error, 1)
	go func() {
		err := w.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("world stopped", zap.Error(err))
		}
		runErr <- err
		cancel()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, *worldID, stats, idx.Stats(), obs)
	})
	if envBool("VE_ENABLE_ADMIN_HTTP", true) {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string            `json:"world_id"`
				Frame   uint64            `json:"frame"`
				Last    world.FrameReport `json:"last_frame"`
				Index   indexdb.Stats     `json:"index"`
			}{
				WorldID: *worldID,
				Frame:   w.Frame(),
				Last:    stats.Last(),
				Index:   idx.Stats(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	}
	if envBool("VE_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	obs.Routes(mux)

	srv := &http.Server{
		Addr:              tune.Observer.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	log.Info("listening", zap.String("addr", tune.Observer.Listen), zap.Bool("allow_remote", tune.Observer.AllowRemote))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("ListenAndServe", zap.Error(err))
		cancel()
	}
	<-runErr
	idx.RecordSession(*worldID, started, "stop", w.Frame())
	log.Info("stopped", zap.Uint64("frame", w.Frame()), zap.Duration("uptime", time.Since(started)))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
