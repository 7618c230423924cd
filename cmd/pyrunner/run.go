package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/pyrunner/download"
	"github.com/caffeineduck/pyrunner/executor"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run Python code once",
	Long: `Execute Python code in a fresh session.

Code can be provided via:
  - File argument: pyrunner run script.py
  - Inline flag: pyrunner run -c 'print(1+1)'
  - Stdin: echo 'print(1+1)' | pyrunner run

Files saved by the code are written to --out when it is set.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().StringP("out", "o", "", "Directory to write produced files to")
	addSessionFlags(cmd)
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", 0, "Execution timeout (0 = none); a timed out run ends the session")
	cmd.Flags().Bool("allow-pkg-install", false, "Allow install_pkg() from running code")
	cmd.Flags().StringSlice("allow-pkg", nil, "Allow specific package (repeatable, implies --allow-pkg-install)")
}

// readSource returns the code from -c, the file argument or piped stdin.
// An empty string with a nil error means there was nothing to read.
func readSource(cmd *cobra.Command, args []string, stdin *os.File) (string, error) {
	code, _ := cmd.Flags().GetString("code")

	switch {
	case code != "":
		return code, nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		// Check if stdin has data (not a terminal)
		stat, err := stdin.Stat()
		if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
			return "", nil
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// checkSource rejects blank code before any runtime is started.
func checkSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("%w: pass a file, -c CODE or pipe code on stdin (see --help)", executor.ErrEmptySource)
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) {
	source, err := readSource(cmd, args, os.Stdin)
	if err != nil {
		fatal(cmd, err)
	}
	if err := checkSource(source); err != nil {
		fatal(cmd, err)
	}

	eng, err := startEngine(context.Background(), false)
	if err != nil {
		fatal(cmd, err)
	}
	defer eng.Close()

	result := eng.session.Execute(context.Background(), source)
	printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)

	if cfg.OutputDir != "" && len(result.Files) > 0 {
		written, err := download.WriteDir(cfg.OutputDir, result.Files)
		for _, p := range written {
			dimColor.Fprintf(cmd.ErrOrStderr(), "saved %s\n", p)
		}
		if err != nil {
			printError(cmd.ErrOrStderr(), err)
		}
	}

	if result.Error != nil {
		eng.Close()
		os.Exit(1)
	}
}

// printResult writes captured output to out and everything else (install
// warnings, file list, errors) to errOut.
func printResult(out, errOut io.Writer, res executor.Result) {
	for _, f := range res.Packages.Failed {
		warnColor.Fprintf(errOut, "warning: could not install %s (%s): %s\n", f.Package, f.Channel, f.Error)
	}

	fmt.Fprint(out, res.Output)
	if res.Output != "" && !strings.HasSuffix(res.Output, "\n") {
		fmt.Fprintln(out)
	}

	if res.Error != nil {
		printError(errOut, res.Error)
		return
	}

	if res.Empty() {
		dimColor.Fprintln(errOut, "(no output)")
	}

	if len(res.Files) > 0 {
		names := make([]string, 0, len(res.Files))
		for name := range res.Files {
			names = append(names, name)
		}
		sort.Strings(names)
		okColor.Fprintln(errOut, "Files:")
		for _, name := range names {
			fmt.Fprintf(errOut, "  %s (%d bytes, %s)\n", name, len(res.Files[name]), download.MimeType(name))
		}
	}
}
