// Package askuser implements the Ask-User Coordinator (spec.md §4.L): a
// short-lived, structured request/response channel between a tool server
// and an interactive host, used when a tool needs the user to pick among
// options rather than approve/deny a single action.
package askuser

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Question is one structured prompt presented to the user.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

// Request is a pending ask-user round, exposed to hosts via Requests().
type Request struct {
	RequestID string
	Questions []Question
}

// Coordinator routes ask-user requests from tool-server callers to an
// interactive host and back.
type Coordinator struct {
	mu       sync.Mutex
	pending  map[string]chan map[string]string
	requests chan Request
}

// New returns a Coordinator with a reasonably buffered request stream;
// callers that need unbounded capacity should drain Requests promptly.
func New() *Coordinator {
	return &Coordinator{
		pending:  make(map[string]chan map[string]string),
		requests: make(chan Request, 16),
	}
}

func newRequestID() string {
	return uuid.NewString()
}

// Requests returns the stream of pending AskUserRequests for a host to
// consume.
func (c *Coordinator) Requests() <-chan Request {
	return c.requests
}

// AskQuestions publishes questions to the host and blocks until Respond
// is called with the matching request id, ctx is canceled, or the
// Coordinator is disposed — whichever comes first. A disposed or
// canceled wait completes with an empty answer map rather than hanging
// indefinitely.
func (c *Coordinator) AskQuestions(ctx context.Context, questions []Question) map[string]string {
	requestID := newRequestID()
	reply := make(chan map[string]string, 1)

	c.mu.Lock()
	c.pending[requestID] = reply
	c.mu.Unlock()

	select {
	case c.requests <- Request{RequestID: requestID, Questions: questions}:
	case <-ctx.Done():
		c.forget(requestID)
		return map[string]string{}
	}

	select {
	case answers := <-reply:
		return answers
	case <-ctx.Done():
		c.forget(requestID)
		return map[string]string{}
	}
}

func (c *Coordinator) forget(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, requestID)
}

// Respond delivers answers for requestID. It returns false if no request
// with that id is pending (already answered, expired, or unknown).
func (c *Coordinator) Respond(requestID string, answers map[string]string) bool {
	c.mu.Lock()
	reply, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	reply <- answers
	return true
}

// Dispose completes every still-pending request with an empty answer
// map, guaranteeing AskQuestions callers never hang past host shutdown.
func (c *Coordinator) Dispose() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan map[string]string)
	c.mu.Unlock()

	for _, reply := range pending {
		reply <- map[string]string{}
	}
}
