// Package main provides the entry point for trusttunnel-gui, a desktop
// front-end that runs the TrustTunnel VPN client and keeps the system proxy
// and DNS settings in step with it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/shini4i/trusttunnel-gui/internal/config"
	"github.com/shini4i/trusttunnel-gui/internal/emergency"
	"github.com/shini4i/trusttunnel-gui/internal/instance"
	"github.com/shini4i/trusttunnel-gui/internal/keyring"
	"github.com/shini4i/trusttunnel-gui/internal/logging"
	"github.com/shini4i/trusttunnel-gui/internal/profile"
	"github.com/shini4i/trusttunnel-gui/internal/stats"
	"github.com/shini4i/trusttunnel-gui/internal/system"
	"github.com/shini4i/trusttunnel-gui/internal/ui"
	"github.com/shini4i/trusttunnel-gui/internal/vpn"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}
	if opts.version {
		fmt.Printf("trusttunnel-gui %s\n", version)
		return exitOK
	}

	level := logging.LevelFromEnv()
	if opts.debug {
		level = logging.LevelDebug
	}
	logging.Setup(level)

	socketPath := instance.DefaultSocketPath()
	if opts.remote != "" {
		return runRemote(opts.remote, socketPath)
	}

	slog.Info("Starting trusttunnel-gui", "version", version)

	mgr, err := config.NewManager()
	if err != nil {
		slog.Error("Failed to load settings", "error", err)
		return exitFailed
	}
	paths := mgr.Paths()

	store, err := profile.NewStore(paths.ConfigDir)
	if err != nil {
		slog.Error("Failed to open credentials directory", "error", err)
		return exitFailed
	}
	if opts.importPath != "" {
		dest, err := store.Import(opts.importPath)
		if err != nil {
			slog.Error("Import failed", "error", err)
			return exitFailed
		}
		fmt.Println("Imported", dest)
		if opts.profile == "" {
			opts.profile = dest
		}
	}

	cred, err := selectCredential(store, opts.profile, mgr.GetConfig().SelectedCredential)
	if err != nil {
		slog.Error("No credential to connect with", "error", err)
		return exitFailed
	}
	if err := mgr.UpdateField(func(cfg *config.Config) { cfg.SelectedCredential = cred.Name }); err != nil {
		slog.Warn("Failed to remember selected credential", "error", err)
	}

	if err := resolvePassword(cred.Endpoint, cred.Name, keyring.NewSystemKeyring(), terminalPrompt(), opts.savePassword); err != nil {
		slog.Error("Cannot connect", "credential", cred.Name, "error", err)
		return exitFailed
	}

	settings := mgr.GetConfig()
	opts.apply(settings)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	services := vpn.NewServices(system.NewExecRunner())
	services.StartupCleanup(ctx)

	controller := vpn.NewController(services, vpn.Options{
		ConfigPath:      paths.ClientConfigFile,
		LogsDir:         paths.LogsDir,
		ClientBinary:    settings.ClientBinary,
		LogCapacity:     settings.LogCapacity,
		PollThrottle:    settings.PollThrottle,
		GracefulTimeout: settings.GracefulTimeout(),
	})
	emergency.Register("controller", controller.EmergencyCleanup)
	defer emergency.Recover()

	if binary, ok := services.FindClientBinary(settings.ClientBinary); ok {
		if err := services.CheckBinaryWorks(ctx, binary, settings.Mode().NeedsElevation()); err != nil {
			slog.Warn("Client binary check failed", "error", err)
		}
	}

	a := newApp(ctx, controller, cred, settings)

	server := instance.NewServer(socketPath, a.handleRequest)
	if err := server.Start(); err != nil {
		if errors.Is(err, instance.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "TrustTunnel is already running. Use --status, --disconnect or --quit to control it.")
			return exitFailed
		}
		slog.Warn("Instance socket unavailable", "error", err)
	} else {
		defer func() { _ = server.Stop() }()
	}

	slog.Info("Session settings", "credential", cred.Name, "mode", modeSummary(settings))
	signals := emergency.Notify(ctx)

	if !opts.tray {
		if err := a.connect(); err != nil {
			var se *vpn.StatusError
			if errors.As(err, &se) && se.Detail != "" {
				fmt.Fprintln(os.Stderr, se.Detail)
			}
		}
		return a.loop(signals, settings.PollInterval(), true)
	}
	return runTray(a, signals, settings)
}

// runTray hosts the tray on the calling goroutine, which must be the main one.
func runTray(a *app, signals <-chan os.Signal, settings *config.Config) int {
	a.tray = ui.NewTrayIcon()
	a.tray.SetSession(a.credential.Name, settings.Mode().IsTun())
	a.notifier = ui.NewNotifier(nil)
	a.notifier.SetEnabled(settings.ShowNotifications)
	a.collector = stats.NewCollector(stats.DefaultPollInterval, stats.SystemSource)
	a.collector.OnSample(a.tray.SetTraffic)

	for _, err := range []error{
		a.tray.OnConnect(func() { _ = a.connect() }),
		a.tray.OnDisconnect(a.disconnect),
		a.tray.OnQuit(a.quit),
	} {
		if err != nil {
			slog.Error("Failed to set up tray", "error", err)
			return exitFailed
		}
	}

	done := make(chan int, 1)
	emergency.Go(func() {
		code := a.loop(signals, settings.PollInterval(), false)
		a.tray.Quit()
		done <- code
	})

	if err := a.tray.Run(); err != nil {
		slog.Error("Tray failed", "error", err)
		a.quit()
	}
	return <-done
}

// selectCredential resolves the credential to use: the flag, then the
// remembered selection, then the only credential in the store.
func selectCredential(store *profile.Store, flagValue, remembered string) (*profile.Credential, error) {
	if flagValue != "" {
		return store.Find(flagValue)
	}
	if remembered != "" {
		cred, err := store.Find(remembered)
		if err == nil {
			return cred, nil
		}
		slog.Warn("Remembered credential is gone", "credential", remembered, "error", err)
	}

	result, err := store.List()
	if err != nil {
		return nil, err
	}
	switch len(result.Credentials) {
	case 0:
		return nil, fmt.Errorf("%w: no credential files in %s (use --import)", profile.ErrStoreNotFound, store.Dir())
	case 1:
		return result.Credentials[0], nil
	}
	names := make([]string, 0, len(result.Credentials))
	for _, c := range result.Credentials {
		names = append(names, c.Name)
	}
	return nil, fmt.Errorf("several credentials found, choose one with --profile: %s", strings.Join(names, ", "))
}
