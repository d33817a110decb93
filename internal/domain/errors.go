package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Each maps onto the
// HTTP status / CLI exit code the façades use; see api and cli packages.

var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate")

	ErrNetwork = errors.New("network error")
	ErrIO      = errors.New("io error")
	ErrParse   = errors.New("parse error")

	ErrEngineUnknown      = errors.New("engine unknown")
	ErrEngineIncompatible = errors.New("engine incompatible")
	ErrEngineLoadFailed   = errors.New("engine load failed")

	ErrServerStartFailed = errors.New("server start failed")
	ErrServerUnreachable = errors.New("server unreachable")

	ErrFatal = errors.New("unsupported host")
)
