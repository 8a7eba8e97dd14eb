package amqp

import (
	"encoding/json"
	"time"

	"apthere/internal/core"
)

// BackfillRequested asks a worker to warm the cache of one region. Months
// defaults to the current window when empty.
type BackfillRequested struct {
	RegionCode5 string    `json:"region_code5"`
	Sources     []string  `json:"sources"`
	Months      []string  `json:"months,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewBackfillRequested(regionCode5 string, sources []core.SourceKind) *BackfillRequested {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	return &BackfillRequested{
		RegionCode5: regionCode5,
		Sources:     names,
		RequestedAt: time.Now().UTC(),
	}
}

// SourceKinds converts Sources, which the schema already restricted.
func (m *BackfillRequested) SourceKinds() ([]core.SourceKind, error) {
	out := make([]core.SourceKind, 0, len(m.Sources))
	for _, s := range m.Sources {
		k, err := core.ParseSourceKind(s)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// ToJSON marshals the message and validates it against the contract.
func (m *BackfillRequested) ToJSON() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := ValidateBackfillRequested(body); err != nil {
		return nil, err
	}
	return body, nil
}

func BackfillRequestedFromJSON(data []byte) (*BackfillRequested, error) {
	if err := ValidateBackfillRequested(data); err != nil {
		return nil, err
	}
	var msg BackfillRequested
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
