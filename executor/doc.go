// Package executor runs Python source inside a WebAssembly interpreter
// and collects what it prints and the files it saves.
//
// # Overview
//
// An [Executor] owns the wazero runtime and caches compiled interpreter
// modules. Each [Session] drives one long-lived interpreter instance, so
// variables, imports and installed packages persist between runs.
//
// # Basic Usage
//
//	exec, err := executor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	session := exec.NewSession(python.New())
//	defer session.Close()
//
//	if err := session.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	result := session.Execute(ctx, `save_file("out.txt", "hi")`)
//	fmt.Println(result.Output) // File 'out.txt' created and ready for download.
//
// # Lifecycle
//
// A Session starts [StateUninitialized]. [Session.Initialize] moves it to
// [StateReady] or [StateFailed] exactly once. Execute is rejected unless the
// session is ready, and at most one Execute runs at a time; a concurrent
// call gets [ErrSessionBusy].
//
// # Packages
//
// Before each run the source's imports are resolved (see package resolver)
// and the matching packages are installed through the session's
// [installer.Installer]. Install failures are logged and reported in
// [Result.Packages]; they never stop the run.
//
// # Language Interface
//
// To host a different interpreter, implement the [Language] interface.
// See [github.com/caffeineduck/pyrunner/language/python] for an example.
package executor
