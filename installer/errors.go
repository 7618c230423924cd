package installer

import "errors"

var (
	// ErrChannelUnavailable is returned for packages whose channel is not configured.
	ErrChannelUnavailable = errors.New("install channel unavailable")

	// ErrUnknownPackage is returned when a repository or index has no such package.
	ErrUnknownPackage = errors.New("unknown package")

	// ErrUnsupported is returned for packages that cannot run in the WASI runtime.
	ErrUnsupported = errors.New("package not supported in wasm")

	// ErrNoWheel is returned when the index has no pure Python wheel.
	ErrNoWheel = errors.New("no compatible wheel found (pure Python wheel required)")
)
