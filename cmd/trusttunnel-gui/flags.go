package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/shini4i/trusttunnel-gui/internal/clientconfig"
	"github.com/shini4i/trusttunnel-gui/internal/config"
	"github.com/shini4i/trusttunnel-gui/internal/instance"
)

// options are the parsed command line flags.
type options struct {
	profile      string
	mode         string
	dns          bool
	dnsSet       bool
	dnsStrategy  string
	client       string
	tray         bool
	debug        bool
	savePassword bool
	importPath   string
	version      bool

	// remote is set when the invocation only talks to a running instance.
	remote instance.Command
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("trusttunnel-gui", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.SortFlags = false

	fs.StringVarP(&opts.profile, "profile", "p", "", "credential file, file name or display name to connect with")
	fs.StringVarP(&opts.mode, "mode", "m", "", "tunnel mode: tun, system_proxy or proxy")
	fs.BoolVar(&opts.dns, "dns", true, "override system DNS in TUN mode")
	fs.StringVar(&opts.dnsStrategy, "dns-strategy", "", "who manages DNS in TUN mode: auto, client or system")
	fs.StringVar(&opts.client, "client", "", "path to the trusttunnel_client binary")
	fs.BoolVar(&opts.tray, "tray", false, "run with a system tray icon instead of connecting immediately")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&opts.savePassword, "save-password", false, "store the password in the system keyring")
	fs.StringVar(&opts.importPath, "import", "", "copy a credential file into the configuration directory")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")

	status := fs.Bool("status", false, "print the status of the running instance")
	disconnect := fs.Bool("disconnect", false, "disconnect the running instance")
	quit := fs.Bool("quit", false, "disconnect and stop the running instance")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	opts.dnsSet = fs.Changed("dns")

	remotes := 0
	for cmd, set := range map[instance.Command]bool{
		instance.CommandStatus:     *status,
		instance.CommandDisconnect: *disconnect,
		instance.CommandQuit:       *quit,
	} {
		if set {
			opts.remote = cmd
			remotes++
		}
	}
	if remotes > 1 {
		return nil, fmt.Errorf("--status, --disconnect and --quit are mutually exclusive")
	}

	if opts.mode != "" {
		if _, err := clientconfig.ParseMode(opts.mode); err != nil {
			return nil, err
		}
	}
	if opts.dnsStrategy != "" {
		if _, err := clientconfig.ParseDNSStrategy(opts.dnsStrategy); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// apply overlays the flags on the persisted settings for this run only.
func (o *options) apply(cfg *config.Config) {
	if o.mode != "" {
		mode, _ := clientconfig.ParseMode(o.mode)
		cfg.TunnelMode = string(mode)
	}
	if o.dnsSet {
		cfg.DNSEnabled = o.dns
	}
	if o.dnsStrategy != "" {
		strategy, _ := clientconfig.ParseDNSStrategy(o.dnsStrategy)
		cfg.DNSStrategy = string(strategy)
	}
	if o.client != "" {
		cfg.ClientBinary = o.client
	}
}
