// Package oob confirms blind SSRF through out-of-band interactions. The
// dashboard is pointed at an interactsh payload host instead of the scan
// target; a hit on the callback server proves the dashboard connects out
// to arbitrary addresses even when no response ever reaches us.
package oob

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/projectdiscovery/interactsh/pkg/client"
	"github.com/projectdiscovery/interactsh/pkg/server"
)

// Tester manages the interactsh session for a scan run
type Tester struct {
	client       *client.Client
	interactions []server.Interaction
	mu           sync.RWMutex
}

// NewTester creates an interactsh session. An empty serverURL uses the
// public interactsh servers.
func NewTester(serverURL, token string) (*Tester, error) {
	options := *client.DefaultOptions
	if serverURL != "" {
		options.ServerURL = serverURL
	}
	if token != "" {
		options.Token = token
	}

	c, err := client.New(&options)
	if err != nil {
		return nil, fmt.Errorf("failed to create interactsh client: %v", err)
	}

	tester := &Tester{client: c}

	err = c.StartPolling(time.Second, func(interaction *server.Interaction) {
		tester.mu.Lock()
		defer tester.mu.Unlock()
		tester.interactions = append(tester.interactions, *interaction)
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start interactsh polling: %v", err)
	}

	return tester, nil
}

// URL returns the payload host the dashboard should be pointed at
func (t *Tester) URL() string {
	return t.client.URL()
}

// WaitForInteraction polls until the callback server reports a hit or the
// timeout expires
func (t *Tester) WaitForInteraction(timeout time.Duration) []server.Interaction {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		t.mu.RLock()
		count := len(t.interactions)
		t.mu.RUnlock()
		if count > 0 {
			return t.Interactions()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

// Interactions returns a copy of all interactions seen so far
func (t *Tester) Interactions() []server.Interaction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]server.Interaction, len(t.interactions))
	copy(out, t.interactions)
	return out
}

// Summarize renders interactions as one line each for logging
func Summarize(interactions []server.Interaction) []string {
	lines := make([]string, 0, len(interactions))
	for _, in := range interactions {
		lines = append(lines, fmt.Sprintf("%s interaction from %s (%s)",
			strings.ToUpper(in.Protocol), in.RemoteAddress, in.FullId))
	}
	return lines
}

// Close stops polling and releases the session
func (t *Tester) Close() {
	t.client.StopPolling()
	t.client.Close()
}
