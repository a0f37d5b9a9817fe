package memory

import (
	"slices"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

// Summary is the rolling digest state of one session.
//
// Text is the condensed digest of older turns. Buffer holds the turns
// recorded since the last condensation, oldest first. Covered counts the
// turns folded into Text and Version counts committed condensations; both
// only grow.
type Summary struct {
	Text    string          `json:"text"`
	Buffer  []protocol.Turn `json:"buffer,omitempty"`
	Covered int             `json:"covered"`
	Version int             `json:"version"`
}

// IsZero reports whether nothing has been recorded for the session.
func (s Summary) IsZero() bool {
	return s.Text == "" && len(s.Buffer) == 0 && s.Covered == 0 && s.Version == 0
}

// Clone returns a copy whose Buffer does not alias the receiver's.
func (s Summary) Clone() Summary {
	s.Buffer = slices.Clone(s.Buffer)
	return s
}
