package invoke

import (
	"context"
	"encoding/json"
	"sync"
)

// Journal records the answers served through it, keyed by fingerprint, so
// a phase can persist the judge responses it relied on.
type Journal struct {
	inv *Invoker

	mu      sync.Mutex
	entries map[string]string
}

// Journal starts an empty journal over inv.
func (inv *Invoker) Journal() *Journal {
	return &Journal{inv: inv, entries: map[string]string{}}
}

func (j *Journal) Invoke(ctx context.Context, prompt string) (string, error) {
	out, err := j.inv.Invoke(ctx, prompt)
	if err != nil {
		return "", err
	}
	fp := Fingerprint(j.inv.Model(), prompt)
	j.mu.Lock()
	j.entries[fp] = out
	j.mu.Unlock()
	return out, nil
}

func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// JSON encodes the recorded answers as an object; map keys are sorted by
// encoding/json.
func (j *Journal) JSON() (json.RawMessage, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return json.Marshal(j.entries)
}
