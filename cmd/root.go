// Package cmd wires up the CLI flags and dispatches to the rewrite and
// forwarding engine.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"mpc/config"
	"mpc/internal/dispatch"
	"mpc/internal/forwarder"
	"mpc/internal/metrics"
	"mpc/internal/retry"
	"mpc/internal/runner"
	"mpc/internal/tool"
	"mpc/tunnel"
	"mpc/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X mpc/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Output streams, swapped by tests.
var (
	stdout io.Writer = os.Stdout //nolint:gochecknoglobals
	stderr io.Writer = os.Stderr //nolint:gochecknoglobals
)

// ExitUsage is returned for command lines mpc cannot parse.
const ExitUsage = 2

// Execute parses args, runs the named tool and returns the exit code
// mpc should exit with.  A non-nil error is worth showing the user;
// the code is meaningful either way.
func Execute(ctx context.Context, args []string) (int, error) {
	cfg := config.Defaults()
	fs := flag.NewFlagSet("mpc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	// Everything after the tool name belongs to the tool.
	fs.SetInterspersed(false)

	// ── forwarder ────────────────────────────────────────────────
	fs.StringVar(&cfg.Forwarder, "forwarder", cfg.Forwarder, "Forwarder helper executable")
	fs.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "Give up if the forwarder has not announced its port by then (0 waits forever)")
	fs.DurationVar(&cfg.GracePeriod, "grace-period", cfg.GracePeriod, "Time between SIGTERM and SIGKILL on teardown")
	fs.StringVar(&cfg.ConfigPath, "config", "", "Config file (default $XDG_CONFIG_HOME/mpc/config.yaml)")

	// ── SSH gateway ──────────────────────────────────────────────
	fs.StringVar(&cfg.GatewaySpec, "ssh-gateway", "", "Forward TCP tools through an SSH gateway [user@]host[:port] instead of the helper")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", "", "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", false, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", false, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", false, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", "", "Custom known_hosts path")

	// ── run ──────────────────────────────────────────────────────
	fs.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Print the rewritten command instead of running it")
	fs.BoolVar(&cfg.List, "list", false, "List supported tools and exit")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	reg := tool.NewRegistry()
	fs.Usage = func() { printUsage(stderr, fs, reg) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, nil
		}
		return ExitUsage, err
	}

	if showHelp {
		printUsage(stdout, fs, reg)
		return 0, nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "mpc %s\n", version)
		return 0, nil
	}

	// ── layering: flags > env > file > defaults ──────────────────
	if err := loadLayers(cfg, fs.Changed); err != nil {
		return dispatch.ExitFailure, err
	}
	for _, t := range cfg.Tools {
		if err := reg.Register(t); err != nil {
			return dispatch.ExitFailure, fmt.Errorf("config: %w", err)
		}
	}

	if cfg.List {
		printTools(stdout, reg)
		return 0, nil
	}

	// ── positional arguments ─────────────────────────────────────
	if fs.NArg() == 0 {
		printUsage(stderr, fs, reg)
		return ExitUsage, fmt.Errorf("tool name is required")
	}
	cfg.Tool = fs.Arg(0)
	cfg.Args = fs.Args()[1:]

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.ResolveGateway(); err != nil {
		return ExitUsage, err
	}
	if err := cfg.Validate(); err != nil {
		return ExitUsage, err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	if cfg.Verbose >= 3 {
		logger.SetTimestamps(true)
	}
	defer logger.Sync() //nolint:errcheck
	m := metrics.New()

	ctx, gate, stop := withInterrupt(ctx, logger)
	defer stop()

	d := &dispatch.Dispatcher{
		Tools:     reg,
		Forwarder: buildForwarder(cfg, logger, m),
		Runner:    buildRunner(cfg, logger),
		Helper:    cfg.Forwarder,
		Logger:    logger,
		Metrics:   m,
		OnStateChange: gate.track,
	}

	out, err := d.Run(ctx, cfg.Tool, cfg.Args)
	logger.Debug("metrics: %s", m.JSON())
	return out.ExitCode, err
}

// loadLayers applies the config file and the environment under the
// flags the user set explicitly.
func loadLayers(cfg *config.Config, changed config.Keep) error {
	path, required, err := config.ResolvePath(cfg.ConfigPath)
	if err != nil {
		return err
	}
	f, err := config.LoadFile(path, required)
	if err != nil {
		return err
	}
	if err := f.Apply(cfg, changed); err != nil {
		return err
	}
	return config.LoadFromEnv(cfg, changed)
}

func buildForwarder(cfg *config.Config, logger *util.Logger, m *metrics.Collector) forwarder.Forwarder {
	if cfg.DryRun {
		return forwarder.Static{}
	}
	p := &forwarder.Process{
		Executable:  cfg.Forwarder,
		Timeout:     cfg.HandshakeTimeout,
		GracePeriod: cfg.GracePeriod,
		Logger:      logger,
		Metrics:     m,
	}
	// The helper is chatty; nil sends its stderr to the null device.
	if cfg.Verbose > 0 {
		p.Stderr = os.Stderr
	}
	if !cfg.GatewayEnabled {
		return p
	}

	sshCfg := &tunnel.SSHConfig{
		User:          cfg.GatewayUser,
		Host:          cfg.GatewayHost,
		Port:          cfg.GatewayPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   config.DefaultConnTimeout,
	}
	// The gateway carries raw TCP only; proxy modes stay with the helper.
	return forwarder.ByMode{
		TCP: &forwarder.SSH{
			NewTunnel: func() tunnel.Tunnel { return tunnel.NewSSHTunnel(sshCfg, logger) },
			Backoff:   retry.GatewayBackoff(),
			Logger:    logger,
			Metrics:   m,
		},
		Proxy: p,
	}
}

func buildRunner(cfg *config.Config, logger *util.Logger) runner.Runner {
	if cfg.DryRun {
		return runner.Printer{W: stdout}
	}
	return &runner.Exec{GracePeriod: cfg.GracePeriod, Logger: logger}
}

// ── output ───────────────────────────────────────────────────────────

func printTools(w io.Writer, reg *tool.Registry) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, t := range reg.Tools() {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", t.Name, t.Class, t.Description)
	}
	tw.Flush()
}

func printUsage(w io.Writer, fs *flag.FlagSet, reg *tool.Registry) {
	fmt.Fprintf(w, `mpc – run client tools through mp connect v%s

Usage:
  mpc [options] <tool> [tool args...]

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fs.SetOutput(stderr)
	fmt.Fprintf(w, "\nSupported tools:\n")
	printTools(w, reg)
	fmt.Fprintf(w, `
Examples:
  mpc ssh user@host
  mpc scp file.txt user@host:/path/
  mpc curl https://api.example.com/endpoint
  mpc git clone git@github.com:user/repo.git
  mpc mysql -h dbhost -u user -p
  mpc psql -h dbhost -U user dbname
  mpc redis-cli -h redishost
  mpc --ssh-gateway ops@bastion psql -h db-internal mydb
`)
}
