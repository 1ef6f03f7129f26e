package payload

import "errors"

// Error kinds surfaced at the content-access boundary (spec.md §4.2, §7
// PayloadAuth/PayloadCorrupt). These are ordinary errors, not sentinels the
// recall path propagates — recall substitutes a placeholder and continues
// (see internal/engine).
var (
	ErrMissingKey          = errors.New("payload: encryption key required but not configured")
	ErrAuthenticationFailed = errors.New("payload: authenticated decryption failed")
	ErrCorruptPayload      = errors.New("payload: unrecognized magic byte or corrupt framing")
	ErrCompressionFailed   = errors.New("payload: compression or decompression failed")
)
