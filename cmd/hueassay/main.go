package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/hueassay/internal/capture"
	"github.com/ayusman/hueassay/internal/color"
	"github.com/ayusman/hueassay/internal/config"
	"github.com/ayusman/hueassay/internal/hook"
	"github.com/ayusman/hueassay/internal/logger"
	"github.com/ayusman/hueassay/internal/sampler"
	"github.com/ayusman/hueassay/internal/server"
	"github.com/ayusman/hueassay/internal/session"
	"github.com/ayusman/hueassay/internal/store"
	"github.com/ayusman/hueassay/internal/tray"
)

const usage = `usage:
  hueassay [serve]
  hueassay analyze -video file -reaction x,y,w,h -background x,y,w,h [-out file.csv] [-interval s] [-hooks]`

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, log)
	case "analyze":
		err = analyze(ctx, cfg, log, args, os.Stdout)
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Error("hueassay failed", zap.String("command", cmd), zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("starting hueassay", zap.String("data_dir", cfg.DataDir))

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	engine := color.NewEngine()
	if err := engine.Init(ctx); err != nil {
		// The UI still serves; analysis reports the engine as not ready.
		log.Error("color engine unavailable", zap.Error(err))
	}

	samplerCfg, err := st.Settings().LoadSampler(cfg.Sampler())
	if err != nil {
		log.Warn("ignoring stored sampler settings", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tr *tray.Tray
	if cfg.Tray {
		tr = tray.New()
	}

	hooks := hook.NewManager(cfg.HooksDir(), log)
	if err := hooks.Discover(); err != nil {
		log.Warn("hooks unavailable", zap.String("dir", cfg.HooksDir()), zap.Error(err))
	}
	dispatcher := hook.NewDispatcher(hooks, hook.NewExecutor(cfg.HookTimeout), log)

	hub := server.NewProgressHub(log)
	var sess *session.Session
	sess = session.New(session.Config{
		Engine:  engine,
		Sampler: samplerCfg,
		Logger:  log,
		OnProgress: func(p sampler.Progress) {
			hub.PublishProgress(p)
			if tr != nil {
				tr.Update(sess.Status())
			}
		},
		OnFinish: func(o session.Outcome) {
			hub.PublishFinish(o)
			if tr != nil {
				tr.Update(sess.Status())
			}
			req := hook.NewRequest(o, sess.Series())
			go dispatcher.Dispatch(ctx, req)
		},
	})

	camera := capture.NewCamera(cfg.CameraID)
	camera.SetFPS(cfg.RecordFPS)
	camera.SetResolution(cfg.RecordWidth, cfg.RecordHeight)
	recorder := capture.NewRecorder(camera, log)
	recorder.SetShakeThreshold(cfg.ShakeThreshold)

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		log.Info("serving static files", zap.String("dir", webDir))
	}

	srv := server.New(server.Config{
		StaticDir:     webDir,
		Store:         st,
		Session:       sess,
		Hub:           hub,
		Recorder:      recorder,
		RecordingsDir: cfg.RecordingsDir(),
		MaxRecording:  time.Duration(cfg.RecordMaxSecs) * time.Second,
		Hooks:         hooks,
		Logger:        log,
		BaseContext:   ctx,
	})

	if tr == nil {
		return srv.ListenAndServe(ctx, cfg.Addr)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, cfg.Addr)
		tr.Quit()
	}()

	tr.OnOpen(func() { openBrowser(log, "http://"+browseAddr(cfg.Addr)) })
	tr.OnCancel(func() { sess.Cancel() })
	tr.OnQuit(cancel)
	tr.Update(sess.Status())

	// systray needs the main goroutine
	tr.Run()
	cancel()
	return <-errCh
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

// browseAddr turns a listen address such as ":8080" into a dialable host:port.
func browseAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func openBrowser(log *zap.Logger, url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("failed to open browser", zap.String("url", url), zap.Error(err))
	}
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}
