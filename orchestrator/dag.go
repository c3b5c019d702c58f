package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clipjoin/command"
	"clipjoin/models"
)

// ResourceType represents a class of work with its own concurrency limit
type ResourceType string

const (
	ResourceEncode ResourceType = "encode" // ffmpeg renders (CPU heavy)
	ResourceIO     ResourceType = "io"     // file moves and probes (sequential)
)

// pollInterval is how often the scheduler rechecks for ready tasks.
const pollInterval = 10 * time.Millisecond

// Task represents a unit of work with dependencies and resource requirements
type Task struct {
	ID           string
	Command      command.Command
	Dependencies []string // IDs of tasks that must complete before this one
	Resource     ResourceType
	Status       TaskStatus
	Error        error
	Result       *models.RenderResult
	StartTime    time.Time
	EndTime      time.Time
}

// TaskStatus represents the current state of a task
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskReady              // Dependencies met, waiting for resource
	TaskRunning
	TaskCompleted
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ResourceConstraint defines limits for a resource type
type ResourceConstraint struct {
	Type     ResourceType
	MaxSlots int // Maximum concurrent tasks for this resource
}

// resultProvider is implemented by commands that produce a render result.
type resultProvider interface {
	Result() *models.RenderResult
}

// DAGOrchestrator runs tasks respecting dependencies and resource
// constraints. A failed task is never retried; tasks that depend on it fail
// without running.
type DAGOrchestrator struct {
	tasks       map[string]*Task
	constraints map[ResourceType]*ResourceConstraint

	// Resource tracking
	activeSlots map[ResourceType]int
	slotsMutex  sync.Mutex

	tasksMutex sync.RWMutex
	completeCh chan string // Task IDs that finished running

	onProgress func(completed, total int, task *Task)
}

// NewDAGOrchestrator creates a new orchestrator with resource constraints
func NewDAGOrchestrator(constraints []ResourceConstraint) *DAGOrchestrator {
	constraintMap := make(map[ResourceType]*ResourceConstraint)
	for i := range constraints {
		constraintMap[constraints[i].Type] = &constraints[i]
	}

	return &DAGOrchestrator{
		tasks:       make(map[string]*Task),
		constraints: constraintMap,
		activeSlots: make(map[ResourceType]int),
	}
}

// AddTask adds a task to the orchestrator
func (o *DAGOrchestrator) AddTask(task *Task) error {
	if task == nil || task.Command == nil {
		return fmt.Errorf("task and its command are required")
	}

	o.tasksMutex.Lock()
	defer o.tasksMutex.Unlock()

	if _, exists := o.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}

	task.Status = TaskPending
	o.tasks[task.ID] = task
	return nil
}

// SetProgressCallback sets a callback invoked once per finished task.
func (o *DAGOrchestrator) SetProgressCallback(callback func(completed, total int, task *Task)) {
	o.onProgress = callback
}

// Execute runs all tasks and returns them in the order they finished.
//
// Task failures are recorded on the tasks, not returned. The returned error
// is a validation error or ctx's error: on cancellation running tasks see
// the cancelled context and pending tasks fail without starting.
func (o *DAGOrchestrator) Execute(ctx context.Context) ([]*Task, error) {
	if err := o.validateDAG(); err != nil {
		return nil, err
	}

	total := len(o.tasks)
	finished := make([]*Task, 0, total)
	if total == 0 {
		return finished, nil
	}
	o.completeCh = make(chan string, total)

	finish := func(task *Task) {
		finished = append(finished, task)
		if o.onProgress != nil {
			o.onProgress(len(finished), total, task)
		}
	}
	receive := func(id string) {
		o.tasksMutex.RLock()
		task := o.tasks[id]
		o.tasksMutex.RUnlock()
		finish(task)
	}

	var running sync.WaitGroup
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for len(finished) < total {
		if ctx.Err() != nil {
			for _, task := range o.failUnstarted(fmt.Errorf("not started: %w", ctx.Err())) {
				finish(task)
			}
			running.Wait()
			for len(finished) < total {
				receive(<-o.completeCh)
			}
			return finished, ctx.Err()
		}

		for _, task := range o.failBlocked() {
			finish(task)
		}

		for _, task := range o.getReadyTasks() {
			if !o.tryAcquireResource(task.Resource) {
				continue
			}
			o.markRunning(task)
			running.Add(1)
			go func(t *Task) {
				defer running.Done()
				o.executeTask(ctx, t)
			}(task)
		}

		if len(finished) == total {
			break
		}
		select {
		case id := <-o.completeCh:
			receive(id)
		case <-ticker.C:
		case <-ctx.Done():
		}
	}

	running.Wait()
	return finished, nil
}

// getReadyTasks returns tasks whose dependencies completed, highest priority
// first, ties broken by ID.
func (o *DAGOrchestrator) getReadyTasks() []*Task {
	o.tasksMutex.Lock()
	defer o.tasksMutex.Unlock()

	ready := make([]*Task, 0)
	for _, task := range o.tasks {
		if task.Status == TaskPending && o.dependenciesMet(task) {
			task.Status = TaskReady
		}
		if task.Status == TaskReady {
			ready = append(ready, task)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		pi, pj := ready[i].Command.GetPriority(), ready[j].Command.GetPriority()
		if pi != pj {
			return pi > pj
		}
		return ready[i].ID < ready[j].ID
	})
	return ready
}

// dependenciesMet checks if all dependencies of a task are completed
func (o *DAGOrchestrator) dependenciesMet(task *Task) bool {
	for _, depID := range task.Dependencies {
		depTask, exists := o.tasks[depID]
		if !exists || depTask.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// tryAcquireResource attempts to acquire a resource slot
func (o *DAGOrchestrator) tryAcquireResource(resourceType ResourceType) bool {
	o.slotsMutex.Lock()
	defer o.slotsMutex.Unlock()

	constraint, exists := o.constraints[resourceType]
	if !exists {
		// No constraint, allow execution
		return true
	}

	if o.activeSlots[resourceType] < constraint.MaxSlots {
		o.activeSlots[resourceType]++
		return true
	}
	return false
}

// releaseResource releases a resource slot
func (o *DAGOrchestrator) releaseResource(resourceType ResourceType) {
	o.slotsMutex.Lock()
	defer o.slotsMutex.Unlock()

	if o.activeSlots[resourceType] > 0 {
		o.activeSlots[resourceType]--
	}
}

func (o *DAGOrchestrator) markRunning(task *Task) {
	o.tasksMutex.Lock()
	task.Status = TaskRunning
	task.StartTime = time.Now()
	o.tasksMutex.Unlock()
}

// executeTask runs a single task that has already been marked running.
func (o *DAGOrchestrator) executeTask(ctx context.Context, task *Task) {
	defer o.releaseResource(task.Resource)

	err := task.Command.Run(ctx)

	o.tasksMutex.Lock()
	task.EndTime = time.Now()
	if rp, ok := task.Command.(resultProvider); ok {
		task.Result = rp.Result()
	}
	if err != nil {
		task.Status = TaskFailed
		task.Error = err
	} else {
		task.Status = TaskCompleted
	}
	o.tasksMutex.Unlock()

	o.completeCh <- task.ID
}

// failBlocked fails every waiting task with a failed dependency and returns
// them.
func (o *DAGOrchestrator) failBlocked() []*Task {
	o.tasksMutex.Lock()
	defer o.tasksMutex.Unlock()

	var failed []*Task
	// Repeat until stable so failures cascade down chains in one call.
	for changed := true; changed; {
		changed = false
		for _, task := range o.sortedTasks() {
			if task.Status != TaskPending && task.Status != TaskReady {
				continue
			}
			if depID, ok := o.failedDependency(task); ok {
				task.Status = TaskFailed
				task.Error = fmt.Errorf("dependency %s failed", depID)
				task.EndTime = time.Now()
				failed = append(failed, task)
				changed = true
			}
		}
	}
	return failed
}

// failUnstarted fails every task that has not started.
func (o *DAGOrchestrator) failUnstarted(reason error) []*Task {
	o.tasksMutex.Lock()
	defer o.tasksMutex.Unlock()

	var failed []*Task
	for _, task := range o.sortedTasks() {
		if task.Status == TaskPending || task.Status == TaskReady {
			task.Status = TaskFailed
			task.Error = reason
			task.EndTime = time.Now()
			failed = append(failed, task)
		}
	}
	return failed
}

// failedDependency returns the first direct dependency that failed.
func (o *DAGOrchestrator) failedDependency(task *Task) (string, bool) {
	for _, depID := range task.Dependencies {
		if depTask, exists := o.tasks[depID]; exists && depTask.Status == TaskFailed {
			return depID, true
		}
	}
	return "", false
}

func (o *DAGOrchestrator) sortedTasks() []*Task {
	out := make([]*Task, 0, len(o.tasks))
	for _, task := range o.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// validateDAG validates the task graph
func (o *DAGOrchestrator) validateDAG() error {
	o.tasksMutex.RLock()
	defer o.tasksMutex.RUnlock()

	// Check all dependencies exist
	for _, task := range o.sortedTasks() {
		for _, depID := range task.Dependencies {
			if _, exists := o.tasks[depID]; !exists {
				return fmt.Errorf("task %s depends on non-existent task %s", task.ID, depID)
			}
		}
	}

	// Check for cycles (simple DFS-based cycle detection)
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(taskID string) bool
	hasCycle = func(taskID string) bool {
		visited[taskID] = true
		recStack[taskID] = true

		task := o.tasks[taskID]
		for _, depID := range task.Dependencies {
			if !visited[depID] {
				if hasCycle(depID) {
					return true
				}
			} else if recStack[depID] {
				return true
			}
		}

		recStack[taskID] = false
		return false
	}

	for _, task := range o.sortedTasks() {
		if !visited[task.ID] && hasCycle(task.ID) {
			return fmt.Errorf("cycle detected in task dependencies")
		}
	}

	return nil
}

// GetTaskStatus returns the status of a task
func (o *DAGOrchestrator) GetTaskStatus(taskID string) (TaskStatus, error) {
	o.tasksMutex.RLock()
	defer o.tasksMutex.RUnlock()

	task, exists := o.tasks[taskID]
	if !exists {
		return TaskPending, fmt.Errorf("task %s not found", taskID)
	}

	return task.Status, nil
}

// Stats counts tasks by status.
type Stats struct {
	Total     int
	Pending   int
	Ready     int
	Running   int
	Completed int
	Failed    int
}

// GetStats returns execution statistics
func (o *DAGOrchestrator) GetStats() Stats {
	o.tasksMutex.RLock()
	defer o.tasksMutex.RUnlock()

	stats := Stats{Total: len(o.tasks)}
	for _, task := range o.tasks {
		switch task.Status {
		case TaskPending:
			stats.Pending++
		case TaskReady:
			stats.Ready++
		case TaskRunning:
			stats.Running++
		case TaskCompleted:
			stats.Completed++
		case TaskFailed:
			stats.Failed++
		}
	}
	return stats
}
