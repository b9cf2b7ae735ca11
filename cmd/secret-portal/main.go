// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/secret-portal/cmd/secret-portal/cli"
	"github.com/bureau-foundation/secret-portal/lib/accesstoken"
	"github.com/bureau-foundation/secret-portal/lib/config"
	"github.com/bureau-foundation/secret-portal/lib/netutil"
	"github.com/bureau-foundation/secret-portal/lib/portal"
	"github.com/bureau-foundation/secret-portal/lib/process"
	"github.com/bureau-foundation/secret-portal/lib/session"
	"github.com/bureau-foundation/secret-portal/lib/tunnel"
	"github.com/bureau-foundation/secret-portal/lib/version"
)

const (
	exitTimedOut    = 2
	exitInterrupted = 130
)

func main() {
	process.Fatal(run(os.Args[1:]))
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newCommand(ctx, environment{stdout: os.Stdout}).Execute(args)
}

// environment is everything the command touches outside its flags.
// Zero fields get production defaults.
type environment struct {
	stdout    io.Writer
	logger    *slog.Logger
	discovery tunnel.Discovery

	// onReady, if set, receives the portal URL after the banner is
	// printed.
	onReady func(url string)
}

type params struct {
	EnvFile      string `flag:"env-file,f" desc:"env file to merge secrets into" default:"~/.env"`
	Port         int    `flag:"port,p" desc:"port to listen on (0 picks a free port)"`
	Host         string `flag:"host" desc:"address to bind (default 0.0.0.0, or 127.0.0.1 with a tunnel)"`
	Timeout      int    `flag:"timeout" desc:"seconds before an unused portal closes" default:"300"`
	Key          string `flag:"key,k" desc:"ask for a single value stored under this key"`
	Instructions string `flag:"instructions,i" desc:"Markdown shown above the form (inline HTML allowed)"`
	Link         string `flag:"link,l" desc:"URL of the page where the secret can be obtained"`
	LinkText     string `flag:"link-text" desc:"label for the --link button" default:"Open console →"`
	Tunnel       string `flag:"tunnel" desc:"expose the portal through none, cloudflared, or ngrok" default:"none"`
	ConfigPath   string `flag:"config" desc:"YAML or JSONC file supplying defaults for these flags"`
	Verbose      bool   `flag:"verbose,v" desc:"enable debug logging"`
	ShowVersion  bool   `flag:"version" desc:"print version information and exit"`
}

func newCommand(ctx context.Context, env environment) *cli.Command {
	var p params
	command := &cli.Command{
		Name:    "secret-portal",
		Summary: "Collect secrets through a one-time web form",
		Description: `Serve a one-time web form that writes submitted secrets into an env file.

The portal prints a URL containing a random access token and closes after
the first successful submission or when --timeout passes. Existing keys in
the env file are replaced in place; new keys are appended. The file is
written atomically with mode 0600.`,
		Examples: []cli.Example{
			{
				Description: "Ask for one API key, with a link to where it is issued",
				Command:     "secret-portal -k OPENAI_API_KEY -l https://platform.openai.com/api-keys",
			},
			{
				Description: "Reach a machine behind NAT through a Cloudflare quick tunnel",
				Command:     "secret-portal --tunnel cloudflared -f ./deploy/.env",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("secret-portal", &p)
		},
	}
	command.Run = func(args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unexpected arguments: %v", args)
		}
		if p.ShowVersion {
			fmt.Fprintln(stdoutOf(env), version.Info())
			return nil
		}
		cfg, err := resolveConfig(p, command.Changed)
		if err != nil {
			return err
		}
		return servePortal(ctx, cfg, p.Verbose, env)
	}
	return command
}

func stdoutOf(env environment) io.Writer {
	if env.stdout != nil {
		return env.stdout
	}
	return os.Stdout
}

// resolveConfig layers the configuration: built-in defaults, then the
// --config file, then flags given explicitly on the command line.
func resolveConfig(p params, changed func(string) bool) (*config.Config, error) {
	cfg := config.Default()
	if p.ConfigPath != "" {
		loaded, err := config.LoadFile(p.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrides := []struct {
		flag  string
		apply func()
	}{
		{"env-file", func() { cfg.EnvPath = p.EnvFile }},
		{"port", func() { cfg.Port = p.Port }},
		{"host", func() { cfg.Host = p.Host }},
		{"timeout", func() { cfg.TimeoutSeconds = p.Timeout }},
		{"key", func() { cfg.SingleKey = p.Key }},
		{"instructions", func() { cfg.Instructions = p.Instructions }},
		{"link", func() { cfg.LinkURL = p.Link }},
		{"link-text", func() { cfg.LinkText = p.LinkText }},
		{"tunnel", func() { cfg.Tunnel = config.Tunnel(p.Tunnel) }},
	}
	for _, override := range overrides {
		if changed(override.flag) {
			override.apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func servePortal(ctx context.Context, cfg *config.Config, verbose bool, env environment) error {
	logger := env.logger
	if logger == nil {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = cli.NewCommandLogger(level)
	}
	stdout := stdoutOf(env)

	token, err := accesstoken.Generate(rand.Reader)
	if err != nil {
		return fmt.Errorf("generating access token: %w", err)
	}
	tokenValue := token.String()

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	guard, err := session.New(session.Config{
		Token:   token,
		Timeout: timeout,
		Logger:  logger.With("component", "session"),
	})
	if err != nil {
		token.Close()
		return err
	}
	defer guard.Close()

	server, err := portal.New(portal.Config{
		Address: net.JoinHostPort(cfg.BindHost(), strconv.Itoa(cfg.Port)),
		Guard:   guard,
		EnvPath: cfg.EnvPath,
		Page: portal.PageOptions{
			SingleKey:    cfg.SingleKey,
			Instructions: cfg.Instructions,
			LinkURL:      cfg.LinkURL,
			LinkText:     cfg.LinkText,
		},
		Logger: logger.With("component", "portal"),
	})
	if err != nil {
		return err
	}

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	type serveResult struct {
		outcome portal.Outcome
		err     error
	}
	results := make(chan serveResult, 1)
	go func() {
		outcome, err := server.Serve(serveCtx)
		results <- serveResult{outcome, err}
	}()

	select {
	case <-server.Ready():
	case result := <-results:
		return result.err
	}

	port, err := netutil.Port(server.Addr())
	if err != nil {
		return err
	}

	baseURL, stopTunnel, err := publicBaseURL(ctx, cfg, port, env, logger)
	if err != nil {
		cancelServe()
		<-results
		return err
	}
	defer stopTunnel()

	portalURL := baseURL + "/" + tokenValue
	printBanner(stdout, banner{
		URL:      portalURL,
		EnvPath:  cfg.EnvPath,
		Timeout:  timeout,
		Deadline: guard.Deadline(),
	})
	if env.onReady != nil {
		env.onReady(portalURL)
	}

	result := <-results
	printSummary(stdout, result.outcome, cfg.EnvPath, timeout)
	if result.err != nil {
		return result.err
	}
	switch result.outcome.State {
	case session.Expired:
		return &cli.ExitError{Code: exitTimedOut}
	case session.Armed:
		return &cli.ExitError{Code: exitInterrupted}
	}
	return nil
}

// publicBaseURL starts the configured tunnel, or works out the direct
// address and warns when it does not reach the listener.
func publicBaseURL(ctx context.Context, cfg *config.Config, port int, env environment, logger *slog.Logger) (string, func(), error) {
	if cfg.Tunnel != config.TunnelNone {
		running, err := tunnel.Start(ctx, tunnel.Options{
			Provider:  cfg.Tunnel,
			LocalPort: port,
			Logger:    logger.With("component", "tunnel"),
		})
		if err != nil {
			return "", nil, fmt.Errorf("starting %s tunnel: %w", cfg.Tunnel, err)
		}
		return running.URL, func() { running.Close() }, nil
	}

	discovery := env.discovery
	if discovery.Logger == nil {
		discovery.Logger = logger
	}
	baseURL := discovery.PublicBaseURL(ctx, port)
	if err := tunnel.Probe(ctx, &http.Client{}, baseURL); err != nil {
		logger.Warn("portal may not be reachable from other machines; use --tunnel cloudflared or open the port in the firewall",
			"address", baseURL,
			"port", port,
			"error", err,
		)
	}
	return baseURL, func() {}, nil
}
