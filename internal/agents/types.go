// Package agents implements the three narrow generation roles: the Planner
// turns a user message plus canvas context into an ordered task list, the
// Executor turns one task into a stream of actions, and the Verifier reviews
// produced actions and returns corrections.
//
// Each agent wraps exactly one generation client and never touches session
// state; it returns data the session controller applies.
package agents

import "context"

// TaskStatus tracks one task through its lifecycle.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"
)

// TodoItem is one unit of work derived from a user request. Items are
// created only by the planner and mutated only by the session controller;
// they are never deleted within a session.
type TodoItem struct {
	ID     string     `json:"id"`
	Text   string     `json:"text"`
	Status TaskStatus `json:"status"`
}

// TextClient is the request/response mode of the generation backend: send a
// prompt, await the full text. Satisfied by *gemini.Client.
type TextClient interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
