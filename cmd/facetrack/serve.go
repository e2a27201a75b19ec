package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/facetrack/internal/app"
	"github.com/ayusman/facetrack/internal/capture"
	"github.com/ayusman/facetrack/internal/config"
	"github.com/ayusman/facetrack/internal/detector"
	"github.com/ayusman/facetrack/internal/hook"
	"github.com/ayusman/facetrack/internal/model"
	"github.com/ayusman/facetrack/internal/recorder"
	"github.com/ayusman/facetrack/internal/server"
	"github.com/ayusman/facetrack/internal/store"
	"github.com/ayusman/facetrack/internal/tray"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start face tracking and the web viewer",
	RunE:  runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", "", "Address to listen on (overrides config)")
	cmd.Flags().Bool("no-tray", false, "Run without the system tray")
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if noTray, _ := cmd.Flags().GetBool("no-tray"); noTray {
		cfg.Server.Tray = false
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	encoder, err := newEncoder(cfg)
	if err != nil {
		return err
	}

	hooks := hook.NewManager(cfg.HooksDir(), logger)
	if err := hooks.Discover(); err != nil {
		logger.Warn("hook discovery failed", "dir", cfg.HooksDir(), "error", err)
	}

	var downloads *recorder.DirDownloader
	if cfg.Recording.DownloadDir != "" {
		downloads = &recorder.DirDownloader{Dir: cfg.Recording.DownloadDir}
	}

	application := app.New(app.Config{
		Camera:           capture.NewCamera(cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height),
		Detector:         newDetector(cfg),
		Models:           model.LocationsIn(cfg.ModelDir()),
		DisplaySize:      detector.Size{Width: cfg.Display.Width, Height: cfg.Display.Height},
		Interval:         cfg.Detection.Interval,
		FailureThreshold: cfg.Detection.FailureThreshold,
		Encoder:          encoder,
		Downloads:        downloads,
		Persister:        st.Recordings(),
		PersistKey:       cfg.Recording.PersistKey,
		Hooks:            hook.NewDispatcher(hooks, hook.NewExecutor(hook.DefaultTimeout), st.HookRuns(), logger),
		Logger:           logger,
	})
	defer application.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The viewer stays up without a camera or model; status reports why.
	if err := application.Start(ctx); err != nil {
		logger.Warn("face tracking unavailable", "error", err)
	}

	srv := server.New(server.Config{
		StaticDir:  findWebDir(cfg.Server.WebDir),
		App:        application,
		Recordings: st.Recordings(),
		HookRuns:   st.HookRuns(),
		Logger:     logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Server.Addr)
	})

	if !cfg.Server.Tray {
		return g.Wait()
	}

	t := tray.New(application, logger)
	t.OnViewer(func() { openBrowser(viewerURL(cfg.Server.Addr)) })
	t.OnQuit(stop)
	g.Go(func() error {
		<-gctx.Done()
		t.Quit()
		return nil
	})

	// The tray must own the main goroutine on macOS.
	t.Run()
	stop()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newDetector(c *config.Config) detector.Detector {
	dc := detector.DefaultConfig()
	dc.MaxFaces = c.Detection.MaxFaces
	dc.MinConfidence = c.Detection.MinConfidence

	if c.Detection.Backend == config.BackendService {
		return detector.NewServiceDetector(dc)
	}
	return detector.NewCascadeDetector(dc)
}

func newEncoder(c *config.Config) (recorder.Encoder, error) {
	switch c.Recording.Encoder {
	case config.EncoderFFmpeg:
		path, err := exec.LookPath(c.Recording.FFmpegPath)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg encoder: %w", err)
		}
		return recorder.NewFFmpegEncoder(path, c.Recording.FPS), nil
	default:
		return recorder.NewMJPEGEncoder(c.Recording.FPS), nil
	}
}

// findWebDir returns the configured web directory or searches common
// locations for one.
func findWebDir(configured string) string {
	if configured != "" {
		return configured
	}

	candidates := []string{"web", "../web", "../../web", filepath.Join(cfg.DataDir, "web")}
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

func viewerURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) {
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
		logger.Warn("open browser failed", "url", url, "error", err)
		return
	}
	go cmd.Wait()
}
