package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	webview "github.com/webview/webview_go"

	"github.com/kartoza/solvency/internal/config"
	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/logger"
	"github.com/kartoza/solvency/internal/pipeline"
	"github.com/kartoza/solvency/internal/server"
	"github.com/kartoza/solvency/internal/store"
)

var version = "dev"

var (
	configPath string
	appConfig  config.Config
)

var rootCmd = &cobra.Command{
	Use:   "solvency",
	Short: "Solvency prediction for credit requests",
	Long: `Solvency scores a client's credit request with a fitted scaler and either a
k-nearest-neighbors or a logistic-regression classifier.

Running without a subcommand starts the web application.

Examples:
  solvency                          # Open the prediction window
  solvency serve --headless         # Serve the form and API only
  solvency predict --age 42 --model log_reg
  solvency artifacts inspect        # Show the loaded models`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
	RunE:              runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction web application",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./"+config.DefaultConfigName+" when present)")
	rootCmd.PersistentFlags().String("artifacts-dir", "", "Directory containing the model artifacts")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON")

	addServeFlags(rootCmd)
	addServeFlags(serveCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(artifactsCmd)
	rootCmd.AddCommand(versionCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("port", 8080, "HTTP server port")
	cmd.Flags().Bool("headless", false, "Run in headless mode (no GUI window)")
}

// flagBindings maps command-line flags onto configuration keys
var flagBindings = map[string]string{
	"artifacts-dir": "artifacts.dir",
	"log-level":     "log.level",
	"log-json":      "log.json",
	"port":          "server.port",
	"headless":      "server.headless",
}

// initConfig loads configuration and sets up the global logger before any command runs
func initConfig(cmd *cobra.Command, args []string) error {
	v, err := config.NewViper(configPath)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg.Version = version

	if err := logger.Initialize(logger.Options{
		JSON:       cfg.Log.JSON,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	appConfig = cfg
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagBindings {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return errors.Wrapf(err, "bind flag --%s", name)
			}
		}
	}
	return nil
}

// loadPipeline loads the artifacts and builds the inference pipeline.
// A load failure is fatal for every command that needs models.
func loadPipeline(ctx context.Context, cfg config.Config) (*store.Store, *pipeline.Pipeline, error) {
	src, err := store.OpenSource(cfg.Artifacts)
	if err != nil {
		return nil, nil, errors.ArtifactLoad(err, "source")
	}
	defer src.Close()

	st, err := store.Load(ctx, src)
	if err != nil {
		return nil, nil, err
	}

	cache, err := pipeline.NewCache(cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	opts := []pipeline.Option{pipeline.WithThreshold(cfg.Model.Threshold)}
	if cache != nil {
		opts = append(opts, pipeline.WithCache(cache))
	}
	return st, pipeline.New(st, opts...), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	log := logger.ComponentLogger("main")

	// In GUI mode a load failure is shown in the window and returned once it closes
	st, pipe, loadErr := loadPipeline(cmd.Context(), cfg)
	if loadErr != nil {
		log.Errorw("Failed to load models", logger.FieldError, loadErr)
		if cfg.Server.Headless {
			return loadErr
		}
	}

	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(cfg.Server.Port, 10)
	if err != nil {
		return errors.Wrap(err, "failed to find available port")
	}
	if availablePort != cfg.Server.Port {
		log.Infof("Port %d in use, using port %d instead", cfg.Server.Port, availablePort)
	}
	cfg.Server.Port = availablePort

	source := "none"
	if st != nil {
		source = st.Source()
	}
	log.Infow("Solvency starting", "version", version, logger.FieldPort, cfg.Server.Port, logger.FieldSource, source)

	srv, err := server.New(cfg, st, pipe)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}
	if loadErr != nil {
		srv.SetLoadError(loadErr)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for server to be ready
	serverURL := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	waitForServer(serverURL, 10*time.Second)

	if cfg.Server.Headless {
		// Headless mode: wait for signal or error
		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "server error")
			}
		case sig := <-stop:
			log.Infof("Received %v signal, shutting down...", sig)
			if err := srv.Stop(); err != nil {
				log.Warnw("Error during shutdown", logger.FieldError, err)
			}
		}
		return nil
	}

	// GUI mode: open embedded WebView window
	log.Infof("Opening application window...")
	w := webview.New(false)
	defer w.Destroy()

	w.SetTitle("Prédiction de Solvabilité")
	w.SetSize(1024, 860, webview.HintNone)
	w.Navigate(serverURL)

	// When the webview window closes, shut down the server
	go func() {
		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				log.Errorw("Server error", logger.FieldError, err)
			}
		case sig := <-stop:
			log.Infof("Received %v signal, shutting down...", sig)
		}
		w.Terminate()
	}()

	// Run blocks until the window is closed
	w.Run()

	log.Infof("Window closed, shutting down server...")
	if err := srv.Stop(); err != nil {
		log.Warnw("Error during shutdown", logger.FieldError, err)
	}
	return loadErr
}

// waitForServer polls until the server is accepting connections
func waitForServer(url string, timeout time.Duration) {
	addr := url[len("http://"):]
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Logger.Warnf("Server may not be ready at %s", url)
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, errors.Newf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}

func main() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
