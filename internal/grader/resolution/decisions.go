package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Decisions is the persisted form of the two decision sets.
// Entries are canonical plan keys (see model.Plan.Key).
type Decisions struct {
	Accepted []string `json:"accepted"`
	Rejected []string `json:"rejected"`
}

// Store loads and saves decision sets.
type Store interface {
	Load(ctx context.Context) (Decisions, error)
	Save(ctx context.Context, d Decisions) error
}

// Normalize sorts and de-duplicates both lists and drops accepted entries that are
// also rejected. The dropped keys are returned so callers can report them.
func (d Decisions) Normalize() (Decisions, []string) {
	rejected := toSet(d.Rejected)
	accepted := toSet(d.Accepted)
	var conflicts []string
	for key := range accepted {
		if _, ok := rejected[key]; ok {
			delete(accepted, key)
			conflicts = append(conflicts, key)
		}
	}
	sort.Strings(conflicts)
	return Decisions{Accepted: sortedKeys(accepted), Rejected: sortedKeys(rejected)}, conflicts
}

// Len returns the number of keys across both lists.
func (d Decisions) Len() int {
	return len(d.Accepted) + len(d.Rejected)
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// encodeList renders a key list as a JSON array; an empty list is written as [].
func encodeList(keys []string) ([]byte, error) {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal decision list failed: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeList(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse decision list failed: %w", err)
	}
	return keys, nil
}
