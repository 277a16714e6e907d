package python

import "errors"

var (
	// ErrInterpreterUnavailable means the interpreter could not be invoked or
	// exited non-zero on the version query.
	ErrInterpreterUnavailable = errors.New("python interpreter unavailable")

	// ErrManifestMissing means the dependency manifest does not exist.
	ErrManifestMissing = errors.New("dependency manifest missing")

	// ErrInstallFailed means the package manager ran and exited non-zero, or
	// could not be started.
	ErrInstallFailed = errors.New("dependency install failed")

	// ErrEntryPointMissing means the server script does not exist.
	ErrEntryPointMissing = errors.New("server entry point missing")
)
