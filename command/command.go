// Package command provides the core Command interface and priority support
// for building and executing FFmpeg commands.
//
// Render commands and batch jobs implement the Command interface, allowing the
// orchestrator to schedule them without knowing what they do.
package command

import "context"

// Priority levels for task execution in the orchestrator.
// Higher priority tasks are started first when several are ready.
const (
	PriorityLow    = 0  // Low priority tasks (e.g., previews)
	PriorityNormal = 5  // Normal priority tasks (e.g., standard renders)
	PriorityHigh   = 10 // High priority tasks (e.g., renders other jobs depend on)
)

// TaskType represents the type of task.
type TaskType string

const (
	TaskTypeRender  TaskType = "render"  // Single-pass crossfade concatenation
	TaskTypePreview TaskType = "preview" // Plan only, nothing is encoded
)

// Command represents an FFmpeg command that can be built, executed, or previewed.
//
// The interface supports:
//   - Command building: Generate FFmpeg argument arrays
//   - Execution: Run the command, observing cancellation
//   - Preview: Display the command without executing (dry run)
//   - Priority: Ordering among ready tasks
//   - Metadata: Task identification and type information
//
// Example usage:
//
//	cmd := render.NewBuilder(desc, "final.mp4").
//		SetVideoCodec("libx264").
//		SetCRF(20)
//
//	// Preview the command
//	line, _ := cmd.DryRun()
//
//	// Execute the command
//	err := cmd.Run(ctx)
type Command interface {
	// BuildArgs constructs and returns the FFmpeg command arguments as a slice.
	// The returned slice is suitable for exec.CommandContext(ctx, "ffmpeg", args...).
	BuildArgs() []string

	// Run executes the command and blocks until it completes or ctx is done.
	// Cancelling ctx terminates any external process the command started.
	Run(ctx context.Context) error

	// DryRun returns the FFmpeg command as a string without executing it.
	//
	// Returns an error if the command cannot be built (e.g., invalid parameters).
	DryRun() (string, error)

	// GetPriority returns the priority level for task scheduling.
	GetPriority() int

	// SetPriority sets the priority level for task scheduling.
	// Returns the Command for method chaining.
	SetPriority(priority int) Command

	// GetTaskType returns the type of task.
	GetTaskType() TaskType

	// GetInputPath returns the primary input file path for this command.
	GetInputPath() string

	// GetOutputPath returns the output file path for this command.
	GetOutputPath() string
}
