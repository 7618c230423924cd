package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/pyrunner/download"
	"github.com/caffeineduck/pyrunner/executor"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive REPL with persistent state",
	Long: `Start an interactive REPL (Read-Eval-Print Loop) session.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Commands:
  :files        list files saved so far
  :save [dir]   write saved files to dir (default --out or .)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Run: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.pyrunner_history)")
	replCmd.Flags().StringP("out", "o", "", "Default directory for :save")
	addSessionFlags(replCmd)
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) {
	historyFile, _ := cmd.Flags().GetString("history")

	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".pyrunner_history")
	}

	eng, err := startEngine(context.Background(), true)
	if err != nil {
		fatal(cmd, err)
	}
	defer eng.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fatal(cmd, fmt.Errorf("initializing readline: %w", err))
	}
	defer rl.Close()

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	fmt.Fprintln(stderr, "pyrunner python REPL (type 'exit' to quit, Ctrl+D to exit)")

	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(">>> ")
				}
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(stdout)
				break
			}
			printError(stderr, fmt.Errorf("reading input: %w", err))
			break
		}

		// Handle multi-line input
		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt("... ")
			continue
		}

		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(">>> ")
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			break
		}
		if strings.HasPrefix(trimmed, ":") {
			replCommand(stdout, stderr, eng.session, trimmed)
			continue
		}

		result := eng.session.Execute(context.Background(), line)
		// Per-run file listing is noise in a REPL; :files shows them.
		result.Files = nil
		printResult(stdout, stderr, result)
		if eng.session.State() == executor.StateFailed {
			printError(stderr, fmt.Errorf("session ended: %w", eng.session.Err()))
			break
		}
	}
}

func replCommand(stdout, stderr io.Writer, session *executor.Session, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":files":
		files := session.Files()
		names := files.Names()
		if len(names) == 0 {
			dimColor.Fprintln(stdout, "(no files)")
			return
		}
		for _, name := range names {
			content, _ := files.Get(name)
			fmt.Fprintf(stdout, "%s\t%d bytes\t%s\n", name, len(content), download.MimeType(name))
		}
	case ":save":
		dir := cfg.OutputDir
		if len(fields) > 1 {
			dir = fields[1]
		}
		if dir == "" {
			dir = "."
		}
		written, err := download.WriteDir(dir, session.ListProducedFiles())
		for _, p := range written {
			fmt.Fprintf(stdout, "saved %s\n", p)
		}
		if err != nil {
			printError(stderr, err)
		}
	default:
		printError(stderr, fmt.Errorf("unknown command %s", fields[0]))
	}
}
