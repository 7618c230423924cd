package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/pyrunner/installer"
	"github.com/caffeineduck/pyrunner/resolver"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Inspect and install Python packages",
	Long: `Inspect which packages code needs and install them ahead of time.

Two channels are used, as when running code: the native package repository
(--repo-dir, a directory with repodata.json and wheels) and PyPI, which only
serves pure Python wheels; packages with C extensions won't work.`,
}

var depsScanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Show the packages code would install",
	Args:  cobra.MaximumNArgs(1),
	Run:   runDepsScan,
}

var depsInstallCmd = &cobra.Command{
	Use:   "install [packages...]",
	Short: "Install packages from PyPI into the site dir",
	Args:  cobra.MinimumNArgs(1),
	Run:   runDepsInstall,
}

var depsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List packages in the site dir",
	Run:   runDepsList,
}

var depsAvailableCmd = &cobra.Command{
	Use:   "available",
	Short: "List packages in the native repository",
	Run:   runDepsAvailable,
}

var depsRemoveCmd = &cobra.Command{
	Use:   "remove [packages...]",
	Short: "Remove packages from the site dir",
	Args:  cobra.MinimumNArgs(1),
	Run:   runDepsRemove,
}

const defaultDepsSiteDir = ".pyrunner/site-packages"

func init() {
	depsScanCmd.Flags().StringP("code", "c", "", "Code to scan")
	depsCmd.AddCommand(depsScanCmd, depsInstallCmd, depsListCmd, depsAvailableCmd, depsRemoveCmd)
	rootCmd.AddCommand(depsCmd)
}

// depsSiteDir is the configured site dir, or a project-local default so
// installs survive between commands.
func depsSiteDir() string {
	if cfg.SiteDir != "" {
		return cfg.SiteDir
	}
	return defaultDepsSiteDir
}

func runDepsScan(cmd *cobra.Command, args []string) {
	source, err := readSource(cmd, args, os.Stdin)
	if err != nil {
		fatal(cmd, err)
	}
	printPlan(cmd.OutOrStdout(), resolver.Resolve(source))
}

func printPlan(w io.Writer, plan resolver.Plan) {
	if plan.Empty() {
		fmt.Fprintln(w, "No packages needed.")
		return
	}
	if len(plan.Native) > 0 {
		fmt.Fprintf(w, "native:    %s\n", strings.Join(plan.Native, ", "))
	}
	if len(plan.Secondary) > 0 {
		fmt.Fprintf(w, "secondary: %s\n", strings.Join(plan.Secondary, ", "))
	}
}

func runDepsInstall(cmd *cobra.Command, args []string) {
	pip := installer.NewPip(installer.PipConfig{IndexURL: cfg.IndexURL, SiteDir: depsSiteDir()})
	if !installPackages(cmd.Context(), cmd.OutOrStdout(), pip, args) {
		os.Exit(1)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Done.")
}

// installPackages installs each package through ch, printing a status line
// per package. It reports whether all of them succeeded.
func installPackages(ctx context.Context, w io.Writer, ch installer.Channel, pkgs []string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	ok := true
	for _, pkg := range pkgs {
		fmt.Fprintf(w, "Installing %s... ", pkg)
		if err := ch.Install(ctx, pkg); err != nil {
			errColor.Fprintln(w, "failed")
			fmt.Fprintf(w, "  %v\n", err)
			ok = false
			continue
		}
		okColor.Fprintln(w, "ok")
	}
	return ok
}

func runDepsList(cmd *cobra.Command, args []string) {
	names, err := sitePackages(depsSiteDir())
	if err != nil {
		fatal(cmd, err)
	}
	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No packages installed.")
		return
	}
	fmt.Fprintf(out, "Packages in %s:\n", depsSiteDir())
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", name)
	}
}

// sitePackages lists top-level package directories in dir.
func sitePackages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasSuffix(entry.Name(), ".dist-info") && !strings.HasPrefix(entry.Name(), "__") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func runDepsAvailable(cmd *cobra.Command, args []string) {
	if cfg.RepoDir == "" {
		fatal(cmd, fmt.Errorf("no native repository configured (--repo-dir or PYRUNNER_REPO_DIR)"))
	}
	pkgs, err := installer.NewNative(cfg.RepoDir, depsSiteDir()).Available()
	if err != nil {
		fatal(cmd, err)
	}
	out := cmd.OutOrStdout()
	for _, p := range pkgs {
		fmt.Fprintf(out, "%-24s %s", p.Name, p.Version)
		if len(p.Depends) > 0 {
			dimColor.Fprintf(out, "  (depends: %s)", strings.Join(p.Depends, ", "))
		}
		fmt.Fprintln(out)
	}
}

func runDepsRemove(cmd *cobra.Command, args []string) {
	dir := depsSiteDir()
	for _, pkg := range args {
		pkgPath := filepath.Join(dir, filepath.Base(pkg))
		if err := os.RemoveAll(pkgPath); err != nil && !os.IsNotExist(err) {
			warnColor.Fprintf(cmd.ErrOrStderr(), "Warning: failed to remove %s: %v\n", pkg, err)
			continue
		}

		entries, _ := os.ReadDir(dir)
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), pkg) && strings.HasSuffix(entry.Name(), ".dist-info") {
				os.RemoveAll(filepath.Join(dir, entry.Name()))
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", pkg)
	}
}
