package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient replays canned responses in order. It backs tests
// and dry runs where no model should be called.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

// NewScriptedClient queues the given responses.
func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// QueueError appends a response slot that fails with err.
func (c *ScriptedClient) QueueError(err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, "")
	for len(c.errs) < len(c.responses)-1 {
		c.errs = append(c.errs, nil)
	}
	c.errs = append(c.errs, err)
	return c
}

// Generate returns the next scripted response.
func (c *ScriptedClient) Generate(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prompts = append(c.prompts, prompt)
	idx := c.calls
	c.calls++
	if idx >= len(c.responses) {
		return "", fmt.Errorf("scripted client exhausted after %d calls", len(c.responses))
	}
	if idx < len(c.errs) && c.errs[idx] != nil {
		return "", c.errs[idx]
	}
	return c.responses[idx], nil
}

// Calls returns how many times Generate was invoked.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Prompts returns the prompts seen so far.
func (c *ScriptedClient) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}
