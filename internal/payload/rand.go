package payload

import "crypto/rand"

// randReader is a package variable so tests can substitute a deterministic
// source if ever needed; production always uses crypto/rand.
var randReader = rand.Reader
