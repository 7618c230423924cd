package hostfunc

import (
	"context"
	"fmt"
	"strings"
)

// PkgConfig configures the install_pkg host function.
type PkgConfig struct {
	AllowedPackages []string // If set, only these packages can be installed
	Enabled         bool     // Whether package installation is enabled

	// Install performs the installation through the secondary channel.
	Install func(ctx context.Context, name string) error
}

// DefaultPkgConfig returns the default package installer configuration.
func DefaultPkgConfig() PkgConfig {
	return PkgConfig{Enabled: false}
}

// NewPkgInstaller returns a host function that lets running code request a
// package through the secondary channel. Args: name (required).
// Install failures are reported in the response, not as call errors.
func NewPkgInstaller(cfg PkgConfig) Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		if !cfg.Enabled || cfg.Install == nil {
			return nil, fmt.Errorf("package installation disabled")
		}

		name, _ := args["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("package name required")
		}

		if strings.ContainsAny(name, ";|&$` /\\") {
			return nil, fmt.Errorf("invalid package name")
		}

		if len(cfg.AllowedPackages) > 0 {
			allowed := false
			for _, pkg := range cfg.AllowedPackages {
				if pkg == name || strings.HasPrefix(name, pkg+"[") {
					allowed = true
					break
				}
			}
			if !allowed {
				return nil, fmt.Errorf("package %q not allowed", name)
			}
		}

		if err := cfg.Install(ctx, name); err != nil {
			return InstallPkgResponse{Package: name, Error: err.Error()}, nil
		}
		return InstallPkgResponse{Success: true, Package: name}, nil
	}
}
