package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"sketchd/internal/canvas"
	"sketchd/internal/logging"
)

// Planner decomposes user requests into an ordered task list. It keeps the
// conversation and its previous task list so follow-up messages extend the
// plan instead of starting over.
type Planner struct {
	client   TextClient
	system   string
	maxTasks int

	mu       sync.Mutex
	messages []plannerMessage
	tasks    []TodoItem
	notice   string
}

type plannerMessage struct {
	Role string
	Text string
}

// NewPlanner builds a planner over a unary client. systemOverride and
// maxTasks of zero keep the defaults.
func NewPlanner(client TextClient, systemOverride string, maxTasks int) *Planner {
	system := systemOverride
	if system == "" {
		system = defaultPlannerSystem
	}
	if maxTasks <= 0 {
		maxTasks = 12
	}
	return &Planner{client: client, system: system, maxTasks: maxTasks}
}

// planResponse is the expected response shape. Todos is a pointer so a
// response lacking the field ("no change") is distinguishable from an
// explicitly empty list.
type planResponse struct {
	Message string      `json:"message"`
	Todos   *[]TodoItem `json:"todos"`
}

// AddMessage records one conversation turn, asks the backend to (re)plan,
// and merges the result into the planner's task list. A response without a
// parseable payload or without the todos field leaves the list unchanged.
func (p *Planner) AddMessage(ctx context.Context, role, text string, contextShapes []canvas.Shape, bounds canvas.Bounds) error {
	p.mu.Lock()
	p.messages = append(p.messages, plannerMessage{Role: role, Text: text})
	prompt := p.buildPromptLocked(contextShapes, bounds)
	p.mu.Unlock()

	raw, err := p.client.CompleteWithSystem(ctx, p.system, prompt)
	if err != nil {
		return fmt.Errorf("planner call failed: %w", err)
	}

	var resp planResponse
	if err := decodeObject(raw, &resp); err != nil {
		// No actionable result; the task list stays as-is.
		logging.Agents("planner: unparseable response, keeping %d tasks", len(p.snapshotTasks()))
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = strings.TrimSpace(resp.Message)
	if resp.Todos == nil {
		logging.Agents("planner: response without todos, keeping %d tasks", len(p.tasks))
		return nil
	}
	p.tasks = p.mergeLocked(*resp.Todos)
	logging.Agents("planner: plan now has %d tasks", len(p.tasks))
	return nil
}

// mergeLocked reconciles a fresh plan with the existing list: completed work
// stays completed, new items get ids, and the list is capped.
func (p *Planner) mergeLocked(incoming []TodoItem) []TodoItem {
	doneByID := make(map[string]bool, len(p.tasks))
	doneByText := make(map[string]bool, len(p.tasks))
	for _, t := range p.tasks {
		if t.Status == StatusDone {
			doneByID[t.ID] = true
			doneByText[t.Text] = true
		}
	}

	out := make([]TodoItem, 0, len(incoming))
	for _, t := range incoming {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Status == "" {
			t.Status = StatusTodo
		}
		if doneByID[t.ID] || doneByText[t.Text] {
			t.Status = StatusDone
		}
		out = append(out, t)
		if len(out) >= p.maxTasks {
			break
		}
	}
	return out
}

func (p *Planner) buildPromptLocked(contextShapes []canvas.Shape, bounds canvas.Bounds) string {
	var b strings.Builder
	b.WriteString("Conversation:\n")
	for _, m := range p.messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
	}
	if len(p.tasks) > 0 {
		b.WriteString("\nCurrent task list:\n")
		for _, t := range p.tasks {
			fmt.Fprintf(&b, "- [%s] %s (id=%s)\n", t.Status, t.Text, t.ID)
		}
	}
	b.WriteString("\nKnown shapes:\n")
	b.WriteString(renderShapes(contextShapes))
	b.WriteString("\n")
	b.WriteString(renderBounds(bounds))
	return b.String()
}

// State returns the latest plan notice and a copy of the task list.
func (p *Planner) State() (string, []TodoItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notice, p.snapshotTasksLocked()
}

func (p *Planner) snapshotTasks() []TodoItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotTasksLocked()
}

func (p *Planner) snapshotTasksLocked() []TodoItem {
	out := make([]TodoItem, len(p.tasks))
	copy(out, p.tasks)
	return out
}
