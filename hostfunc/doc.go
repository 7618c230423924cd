// Package hostfunc provides the Go functions that code running inside the
// embedded interpreter can call.
//
// # Registry
//
// The [Registry] maps names to [Func] values. The executor exposes every
// registered function to the prelude's call shim:
//
//	registry := hostfunc.NewRegistry()
//	registry.Register("my_func", func(ctx context.Context, args map[string]any) (any, error) {
//	    return "result", nil
//	})
//
// # Produced files
//
// [Files] is the set of files created by executed code. Its [Files.Save]
// and [Files.CreateDocument] methods back the prelude's save_file and
// create_simple_document helpers:
//
//	files := hostfunc.NewFiles()
//	registry.Register("save_file", files.Save)
//	registry.Register("create_document", files.CreateDocument)
//
// Both return a one-line confirmation which the prelude prints, so it ends
// up in the captured output of the run that created the file.
//
// # Package installation
//
// [NewPkgInstaller] wraps a secondary-channel install function as the
// install_pkg host function, with name validation and an optional allowlist.
package hostfunc
