package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Hara602/wheaSentry/internal/config"
	"github.com/Hara602/wheaSentry/internal/control"
	"github.com/Hara602/wheaSentry/internal/monitor"
	"github.com/Hara602/wheaSentry/internal/reaction"
	"github.com/Hara602/wheaSentry/internal/sysutil"
	"github.com/Hara602/wheaSentry/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

const (
	exitError           = 1
	exitUsage           = 2
	exitAlreadyRunning  = 3
	shutdownGracePeriod = 5 * time.Second
)

var (
	interval   int
	autostart  bool
	listenAddr string
	configPath string
	logName    string
	host       string
	verbose    bool
)

// usageError marks a bad command line.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "wheasentry",
	Short: "WHEA Sentry - hardware error event log monitor",
	Long: `WHEA Sentry polls the System event log for WHEA hardware error events
and reacts to newly seen errors with a message, a sound or a program.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRunE:       validateFlags,
	RunE:          runAgent,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wheasentry %s\n", version)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVarP(&interval, "interval", "i", monitor.DefaultInterval, "poll interval in seconds (1-3600)")
	flags.BoolVar(&autostart, "autostart", false, "start monitoring immediately")
	flags.StringVar(&listenAddr, "listen", control.DefaultAddr, "control API address, empty to disable")
	flags.StringVarP(&configPath, "config", "c", "", "reaction config file (default: app data dir)")
	flags.StringVar(&logName, "log-name", watcher.DefaultLogName, "event log to read")
	flags.StringVar(&host, "host", watcher.DefaultHost, "machine whose event log is read")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug output on the console")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})
	rootCmd.AddCommand(versionCmd)
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)

	var usage usageError
	switch {
	case errors.As(err, &usage):
		os.Exit(exitUsage)
	case errors.Is(err, sysutil.ErrAlreadyRunning):
		os.Exit(exitAlreadyRunning)
	default:
		os.Exit(exitError)
	}
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if interval < monitor.MinInterval || interval > monitor.MaxInterval {
		return usageError{fmt.Errorf("%w: got %d", monitor.ErrInvalidInterval, interval)}
	}
	return nil
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx)
}

// run blocks until ctx is done. Only the single instance guard can make it
// fail; the config watcher and the control API degrade with a logged error.
func run(ctx context.Context) error {
	// 日志目录拿不到时只输出到控制台
	dataDir, dirErr := sysutil.AppDataDir()
	sysutil.InitLogger(dataDir, verbose)
	defer sysutil.SyncLogger()
	if dirErr != nil {
		sysutil.Log.Warn("App data dir unavailable, log files disabled", zap.Error(dirErr))
	}

	// 单实例
	inst, err := sysutil.AcquireInstance(sysutil.InstanceName)
	if err != nil {
		if errors.Is(err, sysutil.ErrAlreadyRunning) {
			sysutil.FatalNotice(reaction.Title, "WHEA Monitor is already running.")
		}
		return err
	}
	defer inst.Release()

	sysutil.Log.Info("WHEA Sentry starting", zap.String("version", version))

	var legacyPath string
	if configPath == "" {
		configPath = filepath.Join(dataDir, config.DefaultFileName)
		legacyPath = filepath.Join(dataDir, config.LegacyFileName)
	}
	store := config.NewStore(configPath, sysutil.Log.Named("config")).ImportLegacy(legacyPath)
	store.Load() // 读取失败时已回退到默认配置
	sysutil.Log.Info("Reaction config file", zap.String("path", store.Path()))

	dispatcher := reaction.New(reaction.WithLogger(sysutil.Log.Named("reaction")))
	sched := monitor.New(watcher.New(), dispatcher, store,
		monitor.WithLogger(sysutil.Log),
		monitor.WithJournal(sysutil.Journal),
		monitor.WithLogSource(logName, host),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		err := store.Watch(gctx, func(cfg config.Reaction) {
			sysutil.Log.Info("Reaction settings changed on disk")
		})
		if err != nil {
			sysutil.Log.Error("Config hot reload disabled", zap.String("path", store.Path()), zap.Error(err))
		}
		return nil
	})

	if listenAddr != "" {
		srv := control.NewServer(listenAddr, control.NewHandler(sched, store, sysutil.Panel, sysutil.Log.Named("control")))
		g.Go(func() error {
			if err := srv.Start(); err != nil {
				sysutil.Log.Error("Control API disabled", zap.String("addr", srv.Addr()), zap.Error(err))
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if autostart {
		sysutil.LogSugar.Infof("Autostart: reading %s log on %s every %ds", logName, host, interval)
		if _, err := sched.Start(interval); err != nil {
			sysutil.Log.Error("Autostart failed", zap.Error(err))
		}
	} else {
		sysutil.Log.Info("Monitoring is stopped, waiting for a start command")
	}

	err = g.Wait()
	sysutil.Log.Info("WHEA Sentry stopped")
	return err
}
