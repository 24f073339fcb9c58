package dialog

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evkarin/switchboard/core/llms"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type TaskState int32

const (
	TaskRunning TaskState = iota
	TaskCompleted
	TaskCancelled
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskCancelled:
		return "cancelled"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// GenerationTask is one in-flight reply-generation attempt. Cancellation is
// cooperative: the running goroutine checks the flag between fragments and
// additionally has its context cancelled, but the caller must still check
// State before using Result, never assume the task stopped instantly.
type GenerationTask struct {
	ID uuid.UUID
	// Utterance is the user text this reply answers.
	Utterance string
	// Speculative marks a task seeded from interim transcription; its result
	// may only be adopted if the committed utterance matches.
	Speculative bool
	StartedAt   time.Time

	version   uint64
	state     atomic.Int32
	cancelled atomic.Bool
	cancel    context.CancelFunc

	// result and err are written by the run goroutine before done closes.
	result string
	err    error
	done   chan struct{}
}

// Cancel requests cooperative cancellation. Safe to call repeatedly and
// concurrently; a task that already finished is unaffected.
func (t *GenerationTask) Cancel() {
	t.cancelled.Store(true)
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *GenerationTask) State() TaskState {
	return TaskState(t.state.Load())
}

// Result is only meaningful once Done is closed and State is TaskCompleted
// or TaskFailed (the failure fallback text).
func (t *GenerationTask) Result() string { return t.result }

func (t *GenerationTask) Err() error { return t.err }

// Done closes when the task reaches a terminal state.
func (t *GenerationTask) Done() <-chan struct{} { return t.done }

func (t *GenerationTask) finish(state TaskState) {
	t.state.Store(int32(state))
	close(t.done)
}

// GeneratorConfig tunes reply generation.
type GeneratorConfig struct {
	// Deadline is the hard cap on one generation; on expiry the task fails
	// over to the apology so the conversation never stalls.
	Deadline time.Duration
	// CancelGrace bounds how long starting a new task waits for the previous
	// one to acknowledge cancellation.
	CancelGrace time.Duration
	// Instructions is the system prompt prepended when history carries none.
	Instructions string
	MaxTokens    int
	Temperature  float32
	// Apology is spoken in place of a reply when generation fails.
	Apology string
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Deadline:    40 * time.Second,
		CancelGrace: 500 * time.Millisecond,
		Apology:     "I'm sorry, I'm having a little trouble thinking right now. Could you say that again?",
	}
}

// generator drives the language-generation collaborator. At most one task is
// running at a time; starting a new one cancels the previous. The lock is
// held only around the slot swap, never across the generation call itself.
type generator struct {
	client llms.StreamingClient
	config GeneratorConfig

	mu       sync.Mutex
	current  *GenerationTask
	versions atomic.Uint64
}

func newGenerator(client llms.StreamingClient, config GeneratorConfig) *generator {
	return &generator{client: client, config: config}
}

// generate starts a reply for utterance against a scratch copy of history.
// The returned task's Done channel closes when it reaches a terminal state.
func (g *generator) generate(ctx context.Context, history []llms.Message, utterance string, speculative bool) *GenerationTask {
	runCtx, cancel := context.WithCancel(ctx)
	task := &GenerationTask{
		ID:          uuid.New(),
		Utterance:   utterance,
		Speculative: speculative,
		StartedAt:   time.Now(),
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	g.mu.Lock()
	task.version = g.versions.Add(1)
	previous := g.current
	g.current = task
	g.mu.Unlock()

	if previous != nil && previous.State() == TaskRunning {
		previous.Cancel()
		select {
		case <-previous.Done():
		case <-time.After(g.config.CancelGrace):
			logger.Warn("previous generation did not acknowledge cancellation in time")
		}
	}

	if g.client == nil {
		task.result = g.config.Apology
		task.err = nil
		task.finish(TaskFailed)
		return task
	}

	// The scratch copy keeps uncommitted turns out of the shared history; a
	// discarded task leaves no trace.
	scratch := make([]llms.Message, 0, len(history)+1)
	if err := copier.CopyWithOption(&scratch, &history, copier.Option{DeepCopy: true}); err != nil {
		scratch = append(scratch[:0], history...)
	}
	scratch = append(scratch, llms.NewMessage(llms.RoleUser, utterance))

	go g.run(runCtx, task, scratch, speculative)
	return task
}

// run takes speculative as a value: the orchestrator flips task.Speculative
// on adoption under its own lock, which this goroutine must not race with.
func (g *generator) run(ctx context.Context, task *GenerationTask, scratch []llms.Message, speculative bool) {
	ctx, span := tracer.Start(ctx, "generate reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", task.ID.String()),
		attribute.Bool("task.speculative", speculative),
	)

	if g.config.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Deadline)
		defer cancel()
	}

	opts := []llms.PromptOption{}
	if g.config.Instructions != "" {
		opts = append(opts, llms.WithInstructions(g.config.Instructions))
	}
	if g.config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.config.MaxTokens))
	}
	if g.config.Temperature != 0 {
		opts = append(opts, llms.WithTemperature(g.config.Temperature))
	}

	builder := strings.Builder{}
	stream := g.client.PromptWithStream(ctx, scratch, opts...)
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			if task.cancelled.Load() {
				task.finish(TaskCancelled)
				return
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation failed")
			task.err = err
			task.result = g.config.Apology
			task.finish(TaskFailed)
			return
		}

		builder.WriteString(chunk)
		if task.cancelled.Load() {
			task.finish(TaskCancelled)
			return
		}
	}

	if task.cancelled.Load() {
		task.finish(TaskCancelled)
		return
	}
	task.result = builder.String()
	task.finish(TaskCompleted)
}

// isCurrent reports whether task still owns the generation slot. A stale
// task that missed its cancellation flag can never pass this check, the
// version is handed out exactly once.
func (g *generator) isCurrent(task *GenerationTask) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil && task != nil && g.current.version == task.version
}

// cancelCurrent cancels the running task, if any, without starting another.
func (g *generator) cancelCurrent() {
	g.mu.Lock()
	current := g.current
	g.current = nil
	g.mu.Unlock()

	if current != nil {
		current.Cancel()
	}
}
