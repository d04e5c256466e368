package utils

import (
	"strings"
)

// -----------------------------------------------------------------------------

// MaskAPIKey hides credential-looking query fragments in endpoint URLs before
// they reach the logs.
func MaskAPIKey(endpoint string) string {
	idx := strings.IndexAny(endpoint, "?")
	if idx == -1 {
		return endpoint
	}
	return endpoint[:idx] + "?***"
}
