package article

import (
	"encoding/json"
	"fmt"
)

// DecodeSeed parses a seed collection and checks ids are positive and unique.
func DecodeSeed(b []byte) ([]Article, error) {
	var out []Article
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	seen := make(map[int]struct{}, len(out))
	for i := range out {
		a := &out[i]
		if a.ID <= 0 {
			return nil, fmt.Errorf("seed article %d: id must be > 0", i)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("seed article %d: duplicate id %d", i, a.ID)
		}
		seen[a.ID] = struct{}{}
		if a.InternalLinks == nil {
			a.InternalLinks = []string{}
		}
	}
	if out == nil {
		out = []Article{}
	}
	return out, nil
}
