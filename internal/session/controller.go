// Package session implements the per-session orchestration loop: decompose
// a user request into tasks, dispatch each task to the drawing role, stream
// the resulting actions to the client, optionally review each task, and
// finish the turn with a whole-canvas verification pass.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sketchd/internal/agents"
	"sketchd/internal/canvas"
	"sketchd/internal/logging"
)

// State names the controller's position in its turn state machine.
type State string

const (
	StateIdle           State = "idle"
	StatePlanning       State = "planning"
	StateDispatching    State = "dispatching"
	StateTaskExecuting  State = "task-executing"
	StateTaskReviewing  State = "task-reviewing"
	StateFinalVerifying State = "final-verifying"
)

// ErrTurnInFlight is returned when a turn arrives while one is running.
// The running turn is never preempted implicitly; callers use Cancel.
var ErrTurnInFlight = errors.New("session: a turn is already in flight")

// Sink is the outbound client channel a turn writes to. Implementations
// must serialize writes internally; the controller calls from one goroutine.
type Sink interface {
	SendAction(a canvas.Action) error
	SendComplete() error
	SendError(msg string) error
}

// PlannerAgent, ExecutorAgent and VerifierAgent are the narrow views of the
// role agents the controller drives. They return data; only the controller
// mutates session state.
type PlannerAgent interface {
	AddMessage(ctx context.Context, role, text string, contextShapes []canvas.Shape, bounds canvas.Bounds) error
	State() (notice string, tasks []agents.TodoItem)
}

type ExecutorAgent interface {
	ExecuteTask(ctx context.Context, text string, knownShapes []canvas.Shape, bounds canvas.Bounds) (<-chan canvas.Action, <-chan error)
}

type VerifierAgent interface {
	VerifyActions(ctx context.Context, taskText string, acts []canvas.Action, knownShapes []canvas.Shape, bounds canvas.Bounds) ([]canvas.Action, error)
}

// finalReviewInstruction scopes the end-of-turn pass to whole-canvas
// consistency rather than one task.
const finalReviewInstruction = "Review the whole canvas for consistency: " +
	"dangling connections, overlapping shapes, and steps that contradict " +
	"each other across the turn."

// TurnRequest is one structured user request.
type TurnRequest struct {
	Message          string
	ContextItems     []canvas.ContextItem
	SelectedShapes   []canvas.Shape
	Bounds           canvas.Bounds
	SuggesterEnabled bool
}

// Controller owns all mutable state of one session: the task queue, the
// running shapes snapshot, and the turn's action log. All mutations happen
// on the goroutine running the current turn; concurrent turns are rejected
// rather than interleaved, and tasks execute strictly sequentially.
type Controller struct {
	id       string
	planner  PlannerAgent
	executor ExecutorAgent
	verifier VerifierAgent
	// closeConns drops the role agents' generation connections; used by
	// Cancel and Close.
	closeConns func()

	runMu sync.Mutex // held for the duration of one turn

	mu         sync.Mutex
	state      State
	tasks      []agents.TodoItem
	snapshot   *canvas.Snapshot
	actionLog  []canvas.Action
	review     bool
	cancelTurn context.CancelFunc
	lastActive time.Time
}

// NewController wires a controller from its collaborators. closeConns may
// be nil.
func NewController(id string, planner PlannerAgent, executor ExecutorAgent, verifier VerifierAgent, closeConns func()) *Controller {
	return &Controller{
		id:         id,
		planner:    planner,
		executor:   executor,
		verifier:   verifier,
		closeConns: closeConns,
		state:      StateIdle,
		snapshot:   canvas.NewSnapshot(nil),
		lastActive: time.Now(),
	}
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// State reports the controller's current state machine position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tasks returns a copy of the session's task list.
func (c *Controller) Tasks() []agents.TodoItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]agents.TodoItem, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// LastActive reports when the session last ran a turn.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	logging.SessionDebug("session %s: state=%s", c.id, s)
}

// RunTurn executes one full turn against the given sink. It returns
// ErrTurnInFlight when a turn is already running. Role-agent failures never
// abort the turn (they surface as error messages and the queue keeps
// moving); only sink write failures and cancellation do.
func (c *Controller) RunTurn(ctx context.Context, req TurnRequest, sink Sink) error {
	if !c.runMu.TryLock() {
		return ErrTurnInFlight
	}
	defer c.runMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancelTurn = cancel
	c.lastActive = time.Now()
	c.review = req.SuggesterEnabled
	c.actionLog = nil
	for _, sh := range req.SelectedShapes {
		c.snapshot.Apply(canvas.Action{Kind: canvas.KindCreate, Shape: &sh, Complete: true})
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancelTurn = nil
		c.state = StateIdle
		c.mu.Unlock()
	}()

	logging.Session("session %s: turn start msg_len=%d review=%v", c.id, len(req.Message), req.SuggesterEnabled)

	// Plan.
	c.setState(StatePlanning)
	grounding := c.planGrounding(req)
	if err := c.planner.AddMessage(ctx, "user", req.Message, grounding, req.Bounds); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.SessionError("session %s: planning failed: %v", c.id, err)
		if serr := sink.SendError(fmt.Sprintf("planning failed: %v", err)); serr != nil {
			return serr
		}
		return sink.SendComplete()
	}

	notice, planned := c.planner.State()
	c.mu.Lock()
	c.tasks = planned
	c.mu.Unlock()
	if notice != "" {
		if err := c.forward(sink, canvas.NewMessage(notice)); err != nil {
			return err
		}
	}

	// Drain the queue, one task at a time.
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		task, ok := c.nextTodo()
		if !ok {
			break
		}
		c.setState(StateDispatching)
		c.setTaskStatus(task.ID, agents.StatusInProgress)
		if err := c.runTask(ctx, task, req.Bounds, sink); err != nil {
			return err
		}
		c.setTaskStatus(task.ID, agents.StatusDone)
	}

	// Whole-turn verification, exactly once per turn. Failure here is
	// non-fatal: the corrective step is simply skipped.
	c.setState(StateFinalVerifying)
	c.mu.Lock()
	turnLog := make([]canvas.Action, len(c.actionLog))
	copy(turnLog, c.actionLog)
	shapes := c.snapshot.Shapes()
	c.mu.Unlock()
	corrective, err := c.verifier.VerifyActions(ctx, finalReviewInstruction, turnLog, shapes, req.Bounds)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.SessionError("session %s: final verification failed: %v", c.id, err)
	} else {
		for _, a := range corrective {
			a.Complete = true
			if ferr := c.forward(sink, a); ferr != nil {
				return ferr
			}
		}
	}

	logging.Session("session %s: turn complete, %d actions", c.id, len(c.actionLog))
	return sink.SendComplete()
}

// runTask dispatches one task to the executor and optionally reviews the
// result. The task always ends up done; a failing agent surfaces exactly
// one error message and never blocks the queue.
func (c *Controller) runTask(ctx context.Context, task agents.TodoItem, bounds canvas.Bounds, sink Sink) error {
	c.setState(StateTaskExecuting)
	if err := c.forward(sink, canvas.NewMessage(fmt.Sprintf("Working on: %s", task.Text))); err != nil {
		return err
	}

	c.mu.Lock()
	known := c.snapshot.Shapes()
	c.mu.Unlock()

	actions, errs := c.executor.ExecuteTask(ctx, task.Text, known, bounds)

	var taskActions []canvas.Action
	finals := 0
	for a := range actions {
		if a.Complete {
			finals++
			taskActions = append(taskActions, a)
		}
		if err := c.forward(sink, a); err != nil {
			return err
		}
	}
	execErr := <-errs

	if execErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.SessionError("session %s: task %s failed: %v", c.id, task.ID, execErr)
		return sink.SendError(fmt.Sprintf("drawing step failed: %v", execErr))
	}

	if finals == 0 {
		// Forced forward progress: an empty stream still finishes the task.
		logging.Session("session %s: task %s produced no actions", c.id, task.ID)
		return c.forward(sink, canvas.NewMessage("No changes were made for this step."))
	}

	c.mu.Lock()
	review := c.review
	c.mu.Unlock()
	if !review {
		return nil
	}

	c.setState(StateTaskReviewing)
	c.mu.Lock()
	shapes := c.snapshot.Shapes()
	c.mu.Unlock()
	corrective, err := c.verifier.VerifyActions(ctx, task.Text, taskActions, shapes, bounds)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.SessionError("session %s: review of task %s failed: %v", c.id, task.ID, err)
		return sink.SendError(fmt.Sprintf("review failed: %v", err))
	}
	for _, a := range corrective {
		a.Complete = true
		if err := c.forward(sink, a); err != nil {
			return err
		}
	}
	return nil
}

// forward sends one action to the client. Finalized actions are folded into
// the snapshot and the turn log first; previews pass straight through. For
// presentation the client always sees complete=true, since every forwarded
// emission is fully specified as far as the client is concerned.
func (c *Controller) forward(sink Sink, a canvas.Action) error {
	final := a.Complete
	if final {
		c.mu.Lock()
		c.snapshot.Apply(a)
		c.actionLog = append(c.actionLog, a)
		c.mu.Unlock()
	}
	a.Complete = true
	if err := sink.SendAction(a); err != nil {
		// A dead client channel tears the turn down; there is no retry.
		return fmt.Errorf("client channel write failed: %w", err)
	}
	return nil
}

func (c *Controller) nextTodo() (agents.TodoItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tasks {
		if t.Status == agents.StatusTodo {
			return t, true
		}
	}
	return agents.TodoItem{}, false
}

func (c *Controller) setTaskStatus(id string, status agents.TaskStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			c.tasks[i].Status = status
			return
		}
	}
}

// planGrounding merges selected shapes, the running snapshot, and
// deduplicated context items into the shape list the planner sees.
func (c *Controller) planGrounding(req TurnRequest) []canvas.Shape {
	c.mu.Lock()
	shapes := c.snapshot.Shapes()
	c.mu.Unlock()

	seen := make(map[string]bool, len(shapes))
	for _, s := range shapes {
		seen[s.ID] = true
	}
	for _, item := range canvas.DedupeContextItems(req.ContextItems) {
		sh := canvas.ShapeFromPayload(item)
		if sh.ID == "" || seen[sh.ID] {
			continue
		}
		seen[sh.ID] = true
		shapes = append(shapes, sh)
	}
	return shapes
}

// Cancel aborts the in-flight turn, drops the role agents' generation
// connections, and returns the controller to idle. In-flight work is
// discarded, not replayed.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancelTurn
	c.cancelTurn = nil
	c.state = StateIdle
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if c.closeConns != nil {
		c.closeConns()
	}
	logging.Session("session %s: cancelled", c.id)
}

// Close releases the controller's generation connections.
func (c *Controller) Close() {
	c.Cancel()
}
