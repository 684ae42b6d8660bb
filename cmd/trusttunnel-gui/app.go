package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shini4i/trusttunnel-gui/internal/clientconfig"
	"github.com/shini4i/trusttunnel-gui/internal/config"
	"github.com/shini4i/trusttunnel-gui/internal/emergency"
	"github.com/shini4i/trusttunnel-gui/internal/instance"
	"github.com/shini4i/trusttunnel-gui/internal/profile"
	"github.com/shini4i/trusttunnel-gui/internal/stats"
	"github.com/shini4i/trusttunnel-gui/internal/ui"
	"github.com/shini4i/trusttunnel-gui/internal/vpn"
)

// Exit codes of a headless session.
const (
	exitOK     = 0
	exitFailed = 1
)

// app ties the controller to its host surfaces: the reconciliation loop,
// the instance socket, and optionally the tray, notifications and traffic.
type app struct {
	controller *vpn.Controller
	credential *profile.Credential
	settings   *config.Config

	tray      *ui.TrayIcon
	notifier  *ui.Notifier
	collector *stats.Collector

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	exitCode int
}

func newApp(ctx context.Context, controller *vpn.Controller, cred *profile.Credential, settings *config.Config) *app {
	ctx, cancel := context.WithCancel(ctx)
	a := &app{
		controller: controller,
		credential: cred,
		settings:   settings,
		ctx:        ctx,
		cancel:     cancel,
	}
	controller.OnStateChange(a.handleStateChange)
	return a
}

// request builds the connect request from the selected credential and settings.
func (a *app) request() vpn.ConnectRequest {
	return vpn.ConnectRequest{
		Endpoint:       a.credential.Endpoint,
		CredentialName: a.credential.Name,
		Mode:           a.settings.Mode(),
		DNSEnabled:     a.settings.DNSEnabled,
		DNSStrategy:    a.settings.Strategy(),
	}
}

func (a *app) connect() error {
	err := a.controller.Connect(a.ctx, a.request())
	if err != nil {
		slog.Error("Connect failed", "credential", a.credential.Name, "error", err)
	}
	return err
}

func (a *app) disconnect() {
	a.controller.Disconnect(a.ctx)
}

// quit ends the loop. The controller is shut down on the way out.
func (a *app) quit() {
	a.cancel()
}

func (a *app) handleStateChange(old, new vpn.ConnectionState) {
	status := a.controller.Status()
	if old != new {
		slog.Info("Connection state changed", "from", old.String(), "to", new.String())
	}
	if status.Detail != "" {
		slog.Info("Status", "detail", status.Detail)
	}

	if a.tray != nil {
		a.tray.SetStatus(status)
	}
	if a.notifier != nil && old != new {
		a.notifier.NotifyTransition(old, new, a.credential.Name)
	}
	if a.collector != nil && a.settings.Mode().IsTun() {
		switch {
		case new.IsConnected() && !a.collector.IsRunning():
			if err := a.collector.Start(""); err != nil {
				slog.Warn("Traffic statistics unavailable", "error", err)
			}
		case !new.IsConnected() && a.collector.IsRunning():
			a.collector.Stop()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	switch new.Phase {
	case vpn.PhaseConnected:
		a.exitCode = exitOK
	case vpn.PhaseError:
		a.exitCode = exitFailed
	}
}

// loop ticks the controller until ctx ends, or in headless mode until the
// session settles in Disconnected or Error. A termination signal also runs
// the emergency hooks.
func (a *app) loop(signals <-chan os.Signal, interval time.Duration, headless bool) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer a.shutdown()

	for {
		select {
		case <-a.ctx.Done():
			return a.result()
		case sig, ok := <-signals:
			if ok {
				slog.Info("Received shutdown signal", "signal", sig)
			}
			// The session may be gone already; restore every system setting anyway.
			a.shutdown()
			emergency.Run("signal")
			return a.result()
		case <-ticker.C:
			a.controller.Tick(a.ctx)
			if headless && a.settled() {
				return a.result()
			}
		}
	}
}

// settled reports whether a headless session has nothing left to supervise.
func (a *app) settled() bool {
	state := a.controller.State()
	return state.Phase == vpn.PhaseDisconnected || state.Phase == vpn.PhaseError
}

func (a *app) result() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exitCode
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), emergency.Timeout)
	defer cancel()
	a.controller.Shutdown(ctx)
	if a.collector != nil {
		a.collector.Stop()
	}
}

// handleRequest answers a later invocation on the instance socket.
func (a *app) handleRequest(req *instance.Request) *instance.Response {
	switch req.Command {
	case instance.CommandStatus:
		status := a.controller.Status()
		resp, err := instance.NewSuccessResponse(req.ID, instance.StatusResult{
			State:      status.State.String(),
			Detail:     status.Detail,
			Credential: a.credential.Name,
			Mode:       string(a.settings.Mode()),
			PID:        os.Getpid(),
		})
		if err != nil {
			return instance.NewErrorResponse(req.ID, instance.ErrCodeFailed, err.Error())
		}
		return resp
	case instance.CommandConnect:
		if err := a.connect(); err != nil {
			code := instance.ErrCodeFailed
			if errors.Is(err, vpn.ErrBusy) {
				code = instance.ErrCodeInvalidState
			}
			return instance.NewErrorResponse(req.ID, code, err.Error())
		}
		return a.ok(req)
	case instance.CommandDisconnect:
		if !a.controller.State().CanDisconnect() {
			return instance.NewErrorResponse(req.ID, instance.ErrCodeInvalidState, "not connected")
		}
		a.disconnect()
		return a.ok(req)
	case instance.CommandQuit:
		a.quit()
		return a.ok(req)
	default:
		return instance.NewErrorResponse(req.ID, instance.ErrCodeInvalidCommand,
			fmt.Sprintf("unknown command: %s", req.Command))
	}
}

func (a *app) ok(req *instance.Request) *instance.Response {
	resp, _ := instance.NewSuccessResponse(req.ID, nil)
	return resp
}

// modeSummary is logged once at startup.
func modeSummary(cfg *config.Config) string {
	mode := cfg.Mode()
	if !mode.IsTun() {
		return mode.Label()
	}
	if !cfg.DNSEnabled {
		return mode.Label() + ", DNS unchanged"
	}
	if cfg.Strategy() == clientconfig.DNSAuto {
		return mode.Label() + ", DNS auto"
	}
	return mode.Label() + ", DNS " + string(cfg.Strategy())
}
