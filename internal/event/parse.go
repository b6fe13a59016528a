package event

import (
	"encoding/json"
	"fmt"
)

// knownKeys are the payload fields modeled by the Event struct; every
// other field lands in Extra.
var knownKeys = map[string]struct{}{
	"action": {}, "ref": {}, "before": {}, "after": {},
	"commits": {}, "head_commit": {}, "pull_request": {},
	"issue": {}, "repository": {}, "sender": {},
}

// Parse decodes an event payload, keeping unknown fields intact.
func Parse(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse event payload: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse event payload: %w", err)
	}
	for key := range raw {
		if _, ok := knownKeys[key]; ok {
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		ev.Extra = raw
	}
	return &ev, nil
}

// MarshalJSON re-merges the pass-through fields so a round trip keeps
// the full payload.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	data, err := json.Marshal(alias(e))
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range e.Extra {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}
