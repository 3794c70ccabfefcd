package domain

// LiveField is one label/value pair in a display snapshot.
type LiveField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// LiveInfo is the display snapshot for a wager, used both for live UI and as
// the frozen post-resolution record. Producers never fail: when the
// underlying data cannot be read they return Available=false with a reason.
type LiveInfo struct {
	Available bool        `json:"available"`
	Reason    string      `json:"reason,omitempty"`
	Fields    []LiveField `json:"fields,omitempty"`
}

// Unavailable builds a LiveInfo carrying only a reason.
func Unavailable(reason string) LiveInfo {
	return LiveInfo{Available: false, Reason: reason}
}
