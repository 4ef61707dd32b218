package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"swapd/internal/common/fsutil"
	"swapd/internal/config"
	"swapd/internal/httpapi"
	"swapd/internal/modelcfg"
	"swapd/internal/proc"
	"swapd/internal/reconcile"
	"swapd/internal/watch"
	"swapd/pkg/types"
)

// exitCodeError carries a specific process exit status up to main.
type exitCodeError struct{ code int }

func (e exitCodeError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		var ec exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// loadConfig resolves configuration with flags > env > file > defaults.
func loadConfig(configPath string) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		p, err := fsutil.ExpandHome(configPath)
		if err != nil {
			return cfg, err
		}
		cfg, err = config.Load(p)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}
	cfg.FromEnv()
	cfg.ApplyDefaults()
	return cfg, nil
}

// statusSource joins the supervisor snapshot with the last sync result.
type statusSource struct {
	sup  *watch.Supervisor
	sync *types.SyncResult
}

func (s statusSource) Status() types.StatusResponse {
	var st types.StatusResponse
	if s.sup != nil {
		st = s.sup.Status()
	}
	st.LastSync = s.sync
	return st
}

func buildRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		log        zerolog.Logger
	)
	root := &cobra.Command{
		Use:           "swapd",
		Short:         "Supervisor for a llama-swap model-serving process",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SWAPD_CONFIG"), "Path to swapd config file (.yaml/.json/.toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", envStr("SWAPD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		log = newLogger(logLevel)
		httpapi.SetLogger(log)
	}

	// flags shared by run/watch/sync, applied on top of the loaded config
	overlay := func(cmd *cobra.Command, cfg *config.Config) {
		if v, _ := cmd.Flags().GetString("watch-path"); v != "" {
			cfg.WatchPath = v
		}
		if v, _ := cmd.Flags().GetInt("interval"); v > 0 {
			cfg.PollIntervalS = v
		}
		if v, _ := cmd.Flags().GetString("backend"); v != "" {
			cfg.WatchBackend = v
		}
		if v, _ := cmd.Flags().GetString("source"); v != "" {
			cfg.SyncSource = v
		}
		if v, _ := cmd.Flags().GetString("target"); v != "" {
			cfg.SyncTarget = v
		}
		if v, _ := cmd.Flags().GetString("process-name"); v != "" {
			cfg.ProcessName = v
		}
		if v, _ := cmd.Flags().GetString("runtime-bin"); v != "" {
			cfg.RuntimeBin = v
		}
		if v, _ := cmd.Flags().GetString("status-addr"); v != "" {
			cfg.StatusAddr = v
		}
	}
	addWatchFlags := func(cmd *cobra.Command) {
		cmd.Flags().String("watch-path", "", "Config file of the managed process to watch")
		cmd.Flags().Int("interval", 0, "Poll interval in seconds")
		cmd.Flags().String("backend", "", "Watch backend: poll|notify")
		cmd.Flags().String("process-name", "", "Managed process name known to the runtime")
		cmd.Flags().String("runtime-bin", "", "Runtime CLI used for restarts (docker, podman)")
		cmd.Flags().String("status-addr", "", "Listen address for the status endpoint (empty = off)")
	}
	addSyncFlags := func(cmd *cobra.Command) {
		cmd.Flags().String("source", "", "External model source directory (optional)")
		cmd.Flags().String("target", "", "Local model target directory")
	}

	runCmd := &cobra.Command{
		Use:   "run [-- managed process args]",
		Short: "Sync models, launch the managed process, watch its config",
		Example: "  swapd run --managed-bin llama-swap --watch-path /app/config.yaml\n" +
			"  swapd run -- --extra-flag value",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			overlay(cmd, &cfg)
			managedBin, _ := cmd.Flags().GetString("managed-bin")
			return fnRun(cmd.Context(), log, cfg, managedBin, args)
		},
	}
	addWatchFlags(runCmd)
	addSyncFlags(runCmd)
	runCmd.Flags().String("managed-bin", config.DefaultProcessName, "Managed process binary to launch")
	root.AddCommand(runCmd)

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the model directory from the external source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			overlay(cmd, &cfg)
			_, err = fnSync(cmd.Context(), log, cfg)
			return err
		},
	}
	addSyncFlags(syncCmd)
	root.AddCommand(syncCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the managed process's config and restart it on change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			overlay(cmd, &cfg)
			ctrl := proc.NewRuntimeController(cfg.RuntimeBin, log)
			return fnWatch(cmd.Context(), log, cfg, ctrl, nil)
		},
	}
	addWatchFlags(watchCmd)
	root.AddCommand(watchCmd)

	modelsCmd := &cobra.Command{Use: "models", Short: "Inspect the models.json catalog"}
	modelsFileFlag := func(cmd *cobra.Command) {
		cmd.Flags().String("models-file", "", "Path to models.json")
	}
	modelsValidate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the model catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("models-file"); v != "" {
				cfg.ModelsFile = v
			}
			cat, err := modelcfg.Load(cfg.ModelsFile)
			if err != nil {
				return err
			}
			if err := cat.Validate(); err != nil {
				return fmt.Errorf("invalid catalog %s: %w", cfg.ModelsFile, err)
			}
			log.Info().Str("file", cfg.ModelsFile).Int("models", len(cat.Flatten())).Msg("catalog valid")
			return nil
		},
	}
	modelsFileFlag(modelsValidate)
	modelsList := &cobra.Command{
		Use:   "list",
		Short: "List catalog models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("models-file"); v != "" {
				cfg.ModelsFile = v
			}
			cat, err := modelcfg.Load(cfg.ModelsFile)
			if err != nil {
				return err
			}
			for _, e := range cat.Flatten() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.Name, e.Type, e.URL)
			}
			return nil
		},
	}
	modelsFileFlag(modelsList)
	modelsCmd.AddCommand(modelsValidate, modelsList)
	root.AddCommand(modelsCmd)

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	root.AddCommand(completionCmd)

	return root
}

// fnSync runs the startup reconciliation. A failure here must prevent the
// managed process from launching.
func fnSync(ctx context.Context, log zerolog.Logger, cfg config.Config) (types.SyncResult, error) {
	res, err := reconcile.New(cfg.SyncSource, cfg.SyncTarget, log).Run(ctx)
	httpapi.ObserveSync(res, err)
	return res, err
}

// fnWatch runs the config watch supervisor until the context is done or the
// watched file disappears.
func fnWatch(ctx context.Context, log zerolog.Logger, cfg config.Config, ctrl proc.Controller, lastSync *types.SyncResult) error {
	sup, err := watch.New(cfg.WatchPath, cfg.ProcessName, cfg.PollInterval(), ctrl, log,
		watch.WithPollHook(httpapi.ObservePoll),
		watch.WithRestartHook(httpapi.ObserveRestart),
	)
	if err != nil {
		return err
	}
	httpapi.SetBaseline(sup.Baseline())

	if cfg.StatusAddr != "" {
		srv := &http.Server{Addr: cfg.StatusAddr, Handler: httpapi.NewMux(statusSource{sup: sup, sync: lastSync})}
		go func() {
			log.Info().Str("addr", cfg.StatusAddr).Msg("status endpoint listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("status server error")
			}
		}()
		defer srv.Close()
	}

	if cfg.WatchBackend == "notify" {
		return sup.RunNotify(ctx)
	}
	return sup.Run(ctx)
}

// fnRun is the full startup sequence: reconcile, launch, watch.
func fnRun(ctx context.Context, log zerolog.Logger, cfg config.Config, managedBin string, extraArgs []string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := fnSync(ctx, log, cfg)
	if err != nil {
		// never launch against a partially-synced model directory
		return fmt.Errorf("startup sync failed: %w", err)
	}

	launcher := &proc.Launcher{Bin: managedBin, Log: log}
	cmd, err := launcher.Launch(ctx, cfg.WatchPath, extraArgs)
	if err != nil {
		return err
	}
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	ctrl := proc.NewRuntimeController(cfg.RuntimeBin, log)
	watchCh := make(chan error, 1)
	go func() { watchCh <- fnWatch(ctx, log, cfg, ctrl, &res) }()

	select {
	case err := <-waitCh:
		stop()
		if code := proc.ExitCode(err); code != 0 {
			log.Error().Int("code", code).Msg("managed process exited")
			return exitCodeError{code: code}
		}
		log.Info().Msg("managed process exited cleanly")
		return nil
	case err := <-watchCh:
		if err != nil {
			// watch contract broken (e.g. config file deleted): exit non-zero,
			// leaving the managed process to the runtime
			return err
		}
		// watch stopped via signal; wait for the managed process to wind down
		<-waitCh
		return nil
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
