// Package feed delivers normalized live game updates to the per-league
// kernels. The websocket adapter connects to the stats provider, computes a
// content signature per document, and fans events out to subscribers with
// optional replay of cached games.
package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/sidepot/settler/internal/domain"
)

// sigTeam is the statistically relevant subset of a team entry. Display
// fields and provider metadata never participate in the hash.
type sigTeam struct {
	ID      string                    `json:"id"`
	Score   float64                   `json:"score"`
	Stats   domain.StatMap            `json:"stats"`
	Players map[string]domain.StatMap `json:"players"`
}

type sigDoc struct {
	Status domain.GameStatus `json:"status"`
	Period int               `json:"period"`
	Teams  []sigTeam         `json:"teams"`
}

// Signature hashes the statistically relevant subset of a game document:
// status, period, scores and stat buckets. Two documents that differ only in
// generation metadata (fetch timestamps, display names) produce the same
// signature, so unchanged redeliveries are suppressed by the kernel dedup.
func Signature(doc domain.GameDoc) string {
	s := sigDoc{
		Status: doc.Status,
		Period: doc.Period,
		Teams:  make([]sigTeam, 0, len(doc.Teams)),
	}
	for _, t := range doc.Teams {
		st := sigTeam{
			ID:      t.ID,
			Score:   t.Score,
			Stats:   t.Stats,
			Players: make(map[string]domain.StatMap, len(t.Players)),
		}
		for id, p := range t.Players {
			st.Players[id] = p.Stats
		}
		s.Teams = append(s.Teams, st)
	}
	sort.Slice(s.Teams, func(i, j int) bool { return s.Teams[i].ID < s.Teams[j].ID })

	// encoding/json writes map keys in sorted order, so the encoding is
	// canonical for equal content.
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
