package protocol

// Capability identifies a model feature a provider may or may not support.
type Capability string

const (
	Chat   Capability = "chat"
	Vision Capability = "vision"
	Audio  Capability = "audio"
)

// ValidCapabilities returns all known capabilities in declaration order.
func ValidCapabilities() []Capability {
	return []Capability{Chat, Vision, Audio}
}

// IsValid reports whether s names a known capability. Matching is case-sensitive.
func IsValid(s string) bool {
	for _, c := range ValidCapabilities() {
		if string(c) == s {
			return true
		}
	}
	return false
}
