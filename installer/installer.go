// Package installer installs the packages a resolver.Plan asks for, through
// the runtime's native package repository and through a package index.
package installer

import (
	"context"
	"log/slog"

	"github.com/caffeineduck/pyrunner/resolver"
)

// Channel installs packages into a session's site directory.
type Channel interface {
	Name() string
	Install(ctx context.Context, pkg string) error
}

// Failure records one package that could not be installed.
type Failure struct {
	Package string `json:"package"`
	Channel string `json:"channel"`
	Error   string `json:"error"`
}

// Report summarises one Install call.
type Report struct {
	Installed []string  `json:"installed,omitempty"`
	Failed    []Failure `json:"failed,omitempty"`
}

// OK reports whether every requested package was installed.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// Installer runs a plan against the native and secondary channels.
// A nil channel fails every package sent to it.
type Installer struct {
	native    Channel
	secondary Channel
	logger    *slog.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithLogger sets the logger used for install failures.
func WithLogger(l *slog.Logger) Option {
	return func(i *Installer) {
		if l != nil {
			i.logger = l
		}
	}
}

func New(native, secondary Channel, opts ...Option) *Installer {
	i := &Installer{
		native:    native,
		secondary: secondary,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install installs native packages first, then secondary ones, one at a
// time. A failing package is logged and skipped; it never stops the rest.
func (i *Installer) Install(ctx context.Context, plan resolver.Plan) Report {
	var report Report
	i.installAll(ctx, i.native, "native", plan.Native, &report)
	i.installAll(ctx, i.secondary, "secondary", plan.Secondary, &report)
	return report
}

// Secondary returns the secondary channel, for callers that install on
// request from running code.
func (i *Installer) Secondary() Channel {
	return i.secondary
}

func (i *Installer) installAll(ctx context.Context, ch Channel, kind string, pkgs []string, report *Report) {
	for _, pkg := range pkgs {
		var err error
		name := kind
		if ch == nil {
			err = ErrChannelUnavailable
		} else {
			name = ch.Name()
			err = ch.Install(ctx, pkg)
		}

		if err != nil {
			i.logger.Warn("package install failed", "package", pkg, "channel", name, "error", err)
			report.Failed = append(report.Failed, Failure{Package: pkg, Channel: name, Error: err.Error()})
			continue
		}
		i.logger.Debug("package installed", "package", pkg, "channel", name)
		report.Installed = append(report.Installed, pkg)
	}
}
