package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pingcap-incubator/tinyocc/kv/account"
	"github.com/pingcap-incubator/tinyocc/kv/config"
	"github.com/pingcap-incubator/tinyocc/kv/report"
	"github.com/pingcap-incubator/tinyocc/kv/scheduler"
	logutil "github.com/pingcap-incubator/tinyocc/log"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	configPath  string
	logLevel    string
	latchDelay  config.Duration
	workers     int
	timeout     config.Duration
	maxSpins    int
	metricsAddr string
	serial      bool
)

func newRootCommand() *cobra.Command {
	defaults := config.NewDefaultConfig()
	latchDelay = defaults.LatchDelay
	timeout = defaults.Timeout

	m := &cobra.Command{
		Use:           "tinyocc [flags] <transactions-file>",
		Short:         "Run a batch of account transactions concurrently under optimistic concurrency control",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCommandFunc,
	}
	m.Flags().StringVar(&configPath, "config", "", "TOML config file")
	m.Flags().StringVar(&logLevel, "log-level", defaults.LogLevel, "log level: debug, info, warn or error")
	m.Flags().Var(durationValue{&latchDelay}, "delay", "simulated latency of every account operation")
	m.Flags().IntVar(&workers, "workers", defaults.Workers, "number of transactions executing at once")
	m.Flags().Var(durationValue{&timeout}, "timeout", "abandon transactions still running after this long")
	m.Flags().IntVar(&maxSpins, "max-spins", defaults.MaxSpins, "aborted opens before a statement restarts, 0 spins forever")
	m.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	m.Flags().BoolVar(&serial, "serial", false, "run the transactions one after another in input order")
	return m
}

// durationValue lets a config.Duration be set from the command line.
type durationValue struct {
	d *config.Duration
}

var _ pflag.Value = durationValue{}

func (v durationValue) String() string {
	if v.d == nil {
		return ""
	}
	return v.d.String()
}

func (v durationValue) Set(s string) error {
	return v.d.UnmarshalText([]byte(s))
}

func (v durationValue) Type() string {
	return "duration"
}

// loadConfig builds the config from the defaults, then the config file, then the flags given explicitly.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("delay") {
		cfg.LatchDelay = latchDelay
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("max-spins") {
		cfg.MaxSpins = maxSpins
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	return cfg, nil
}

func runCommandFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if err := logutil.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}
	defer logutil.Sync()
	log.Info("config", zap.Reflect("config", cfg))
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handleSignal(cancel)

	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr)
	}

	table := account.NewDefaultTable(cfg.LatchDelay.Duration)
	sink := report.NewWriterSink(os.Stdout)
	s := scheduler.New(table, cfg, sink)

	var res *scheduler.Result
	if serial {
		var f *os.File
		if f, err = os.Open(args[0]); err != nil {
			return errors.Trace(err)
		}
		defer f.Close()
		res, err = s.RunSerial(ctx, f)
	} else {
		res, err = s.RunFile(ctx, args[0])
	}
	if err != nil {
		return err
	}
	if err := sink.Err(); err != nil {
		return err
	}
	if res.TimedOut {
		log.Warn("some transactions did not finish", zap.Int64("abandoned", res.Abandoned))
	}
	return report.DumpAccounts(os.Stdout, table)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
}

func handleSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		sig := <-sigCh
		log.Info("got signal to exit", zap.String("signal", sig.String()))
		cancel()
	}()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tinyocc: %v\n", err)
		os.Exit(1)
	}
}
