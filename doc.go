// Package pyrunner runs Python source in an embedded WebAssembly
// interpreter, installs the packages the source imports, captures what it
// prints, and collects the files it saves for download.
//
// # Overview
//
// A session owns one long-lived RustPython instance hosted by wazero.
// Before each run, import statements are resolved against a fixed table of
// known packages and installed through the native package repository or a
// PyPI index. Executed code can call save_file() and
// create_simple_document(); the saved files persist for the session and
// can be written to a directory or served over HTTP.
//
// # Basic Usage
//
//	exec, _ := executor.New()
//	defer exec.Close()
//
//	session := exec.NewSession(python.New(python.WithModulePath("rustpython.wasm")))
//	defer session.Close()
//	if err := session.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	result := session.Execute(ctx, `
//	import pandas as pd
//	save_file("report.csv", pd.DataFrame({"a": [1, 2]}).to_csv())
//	`)
//	fmt.Print(result.Output)
//	download.WriteDir("out", result.Files)
//
// # Packages
//
//   - [github.com/caffeineduck/pyrunner/executor]: sessions and the wasm runtime
//   - [github.com/caffeineduck/pyrunner/resolver]: imports to packages
//   - [github.com/caffeineduck/pyrunner/installer]: native and PyPI channels
//   - [github.com/caffeineduck/pyrunner/hostfunc]: functions executed code can call
//   - [github.com/caffeineduck/pyrunner/download]: serving and saving produced files
//   - [github.com/caffeineduck/pyrunner/sandbox]: one-shot runs
package pyrunner
