package judge

import (
	"fmt"
	"sync"

	"github.com/ETAnderson/grader/internal/errors"
)

// Credential is one API key plus the label that is safe to persist and log.
type Credential struct {
	Label string
	Key   string
}

// KeyPool hands out credentials round-robin.
type KeyPool struct {
	mu    sync.Mutex
	creds []Credential
	next  int
}

// NewKeyPool labels keys k1..kN in the order given.
func NewKeyPool(keys []string) *KeyPool {
	creds := make([]Credential, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		creds = append(creds, Credential{Label: fmt.Sprintf("k%d", len(creds)+1), Key: k})
	}
	return &KeyPool{creds: creds}
}

func (p *KeyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// First returns the first credential without moving the rotation.
func (p *KeyPool) First() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.creds) == 0 {
		return Credential{}, errNoKeys()
	}
	return p.creds[0], nil
}

// Next returns the next credential in rotation.
func (p *KeyPool) Next() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.creds) == 0 {
		return Credential{}, errNoKeys()
	}
	c := p.creds[p.next%len(p.creds)]
	p.next = (p.next + 1) % len(p.creds)
	return c, nil
}

func errNoKeys() error {
	return errors.New(errors.EMisconfigured, "no judge API keys configured (set GEMINI_API_KEYS or GEMINI_API_KEY)")
}
