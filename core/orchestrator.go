// Package dialog is the turn-taking and cancellation engine for a
// full-duplex spoken conversation. It decides when the user has finished an
// utterance, composes a reply before they necessarily have, speaks it
// through a streaming synthesis channel, and cuts the reply off the moment
// the user barges in.
//
// All external I/O (trigger hardware, audio devices, transcription,
// synthesis, language generation) is consumed through narrow collaborator
// interfaces; the engine owns only the state machine and the concurrency
// protocol between its phases.
package dialog

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evkarin/switchboard/core/audio"
	"github.com/evkarin/switchboard/core/llms"
	"github.com/evkarin/switchboard/core/speechtotext"
	"github.com/evkarin/switchboard/core/trigger"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Orchestrator struct {
	speechToText speechToTextFacade
	audioClient  AudioClient
	triggers     trigger.Source
	llm          llms.StreamingClient
	tts          SpeechSynthesizer
	summarizer   llms.StructuredClient

	history    *History
	segmenter  *segmenter
	generator  *generator
	classifier *classifier
	playback   *playbackController

	queue    chan engineEvent
	closeCh  chan struct{}
	loopDone chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	running   atomic.Bool

	// muted gates the capture-to-transcription path without stopping
	// capture; transcribing additionally gates it while no conversation is
	// up.
	muted        atomic.Bool
	transcribing atomic.Bool

	baseContext context.Context
	watchCancel context.CancelFunc

	// mu guards everything below. Event handlers run under it on the queue
	// goroutine; Hangup may take it from any goroutine.
	mu                 sync.Mutex
	state              State
	offHook            bool
	conversationActive bool
	currentTask        *GenerationTask
	currentSession     *PlaybackSession
	pendingUtterance   string
	tone               *tonePlayer

	segmenterConfig  SegmenterConfig
	generatorConfig  GeneratorConfig
	classifierConfig ClassifierConfig

	greeting     string
	tonesEnabled bool
	strict       bool

	reconnectAttempts int
	reconnectBackoff  time.Duration

	callbacks orchestratorCallbacks
}

// orchestratorCallbacks are invoked from the engine goroutine; they must not
// call mutating orchestrator methods synchronously.
type orchestratorCallbacks struct {
	onStateChange func(State)
	onTranscript  func(TranscriptEvent)
	onReply       func(string)
	onDigit       func(int)
	onSummary     func(CallSummary)
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		history:  newHistory(),
		queue:    make(chan engineEvent, eventQueueCapacity),
		closeCh:  make(chan struct{}),
		loopDone: make(chan struct{}),

		baseContext: context.Background(),
		state:       StateIdle,

		segmenterConfig:  DefaultSegmenterConfig(),
		generatorConfig:  DefaultGeneratorConfig(),
		classifierConfig: DefaultClassifierConfig(),

		greeting:     "Hello?",
		tonesEnabled: true,

		reconnectAttempts: 3,
		reconnectBackoff:  time.Second,
	}
	o.muted.Store(true)

	for _, opt := range opts {
		opt(o)
	}

	o.segmenter = newSegmenter(o.segmenterConfig,
		func(utterance string) { o.enqueue(engineEvent{kind: eventCommit, utterance: utterance}) },
		func(text string) { o.enqueue(engineEvent{kind: eventSpeculative, utterance: text}) },
	)
	o.generator = newGenerator(o.llm, o.generatorConfig)
	o.classifier = newClassifier(o.classifierConfig)
	o.playback = newPlaybackController(o.tts, renderFacade{client: o.audioClient})

	return o
}

// Run starts the engine workers: the event loop, the silence watcher, audio
// capture, and the trigger watcher. It returns once they are running; Close
// or cancellation of ctx stops them.
//
// Call Run at most once per orchestrator instance.
func (o *Orchestrator) Run(ctx context.Context) error {
	started := false
	o.startOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("orchestrator already started")
	}
	o.running.Store(true)

	o.baseContext = ctx
	watchCtx, cancel := context.WithCancel(ctx)
	o.watchCancel = cancel

	go o.loop()
	go o.segmenter.watch(watchCtx)

	if o.audioClient != nil {
		if err := o.audioClient.StartCapture(ctx, o.forwardAudio); err != nil {
			cancel()
			return fmt.Errorf("failed to start audio capture: %w", err)
		}
	}
	if o.triggers != nil {
		go o.watchTriggers()
	}

	go func() {
		select {
		case <-ctx.Done():
			o.Close()
		case <-o.closeCh:
		}
	}()
	return nil
}

func (o *Orchestrator) loop() {
	defer close(o.loopDone)
	for {
		select {
		case <-o.closeCh:
			return
		case event := <-o.queue:
			o.handle(event)
		}
	}
}

func (o *Orchestrator) watchTriggers() {
	for event := range o.triggers.Events() {
		o.enqueue(engineEvent{kind: eventTrigger, trigger: event})
	}
}

func (o *Orchestrator) enqueue(event engineEvent) {
	select {
	case o.queue <- event:
	case <-o.closeCh:
	default:
		log.Printf("Warning: dropping engine event, queue full (kind=%d)", event.kind)
	}
}

// forwardAudio runs on the capture worker. It must never block on downstream
// processing; the transcription client buffers internally.
func (o *Orchestrator) forwardAudio(chunk []byte) {
	if o.muted.Load() || !o.transcribing.Load() {
		return
	}
	if err := o.speechToText.sendAudio(chunk); err != nil {
		log.Printf("Warning: failed to forward audio to transcription: %s", err)
	}
}

func (o *Orchestrator) handle(event engineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.kind {
	case eventTranscript:
		o.handleTranscript(event.transcript)
	case eventCommit:
		o.handleCommit(event.utterance)
	case eventSpeculative:
		o.handleSpeculative(event.utterance)
	case eventGenerationDone:
		o.handleGenerationDone(event.task)
	case eventPlaybackDone:
		o.handlePlaybackDone(event.session)
	case eventTrigger:
		o.handleTrigger(event.trigger)
	case eventTranscriberLost:
		o.handleTranscriberLost(event.err)
	}
}

func (o *Orchestrator) handleTranscript(event TranscriptEvent) {
	if o.callbacks.onTranscript != nil {
		o.callbacks.onTranscript(event)
	}

	switch o.state {
	case StateListening, StateGenerating, StateInterrupted:
		// While a reply for an earlier utterance is still being composed,
		// new speech keeps accumulating; a fresh commit supersedes the
		// running generation.
		o.segmenter.observe(event)
	case StateSpeaking:
		o.maybeInterrupt(event)
	case StateIdle:
	}
}

func (o *Orchestrator) maybeInterrupt(event TranscriptEvent) {
	session := o.currentSession
	ictx := interruptionContext{sessionActive: session != nil}
	if session != nil {
		ictx.playbackStart = session.StartedAt
	}
	if o.currentTask != nil {
		ictx.generationStart = o.currentTask.StartedAt
	}

	if !o.classifier.isInterruption(event.Text, event.IsFinal, ictx) {
		return
	}

	logger.Info("barge-in detected", "fragment", event.Text)
	o.playback.interrupt()
	o.currentSession = nil
	if !o.transitionTo(StateInterrupted) {
		return
	}
	o.segmenter.reset()
	// No acknowledgment phrase; answering the interruption directly keeps
	// latency down.
	o.startGeneration(event.Text)
}

func (o *Orchestrator) handleCommit(utterance string) {
	if utterance == "" {
		return
	}

	switch o.state {
	case StateListening, StateGenerating, StateInterrupted:
	default:
		return
	}

	// A speculative task seeded from the same text is adopted instead of
	// regenerating from scratch.
	if task := o.currentTask; task != nil && task.Speculative && task.Utterance == utterance {
		task.Speculative = false
		o.pendingUtterance = utterance
		if o.state == StateListening {
			if !o.transitionTo(StateGenerating) {
				return
			}
			o.startThinkingTone()
		}
		select {
		case <-task.Done():
			o.handleGenerationDone(task)
		default:
		}
		return
	}

	if o.state != StateGenerating {
		if !o.transitionTo(StateGenerating) {
			return
		}
	}
	o.startThinkingTone()
	o.startGeneration(utterance)
}

func (o *Orchestrator) handleSpeculative(text string) {
	if o.state != StateListening || o.currentTask != nil {
		return
	}
	// Stay in Listening: the turn has not committed, the result is merely
	// warmed up and fully discardable.
	task := o.generator.generate(o.baseContext, o.history.Messages(), text, true)
	o.currentTask = task
	go o.awaitGeneration(task)
}

// startGeneration launches a (non-speculative) generation for utterance.
// Callers have already moved the state machine to Generating or Interrupted.
func (o *Orchestrator) startGeneration(utterance string) {
	o.pendingUtterance = utterance
	if o.state == StateInterrupted {
		if !o.transitionTo(StateGenerating) {
			return
		}
		o.startThinkingTone()
	}
	task := o.generator.generate(o.baseContext, o.history.Messages(), utterance, false)
	o.currentTask = task
	go o.awaitGeneration(task)
}

func (o *Orchestrator) awaitGeneration(task *GenerationTask) {
	<-task.Done()
	o.enqueue(engineEvent{kind: eventGenerationDone, task: task})
}

func (o *Orchestrator) handleGenerationDone(task *GenerationTask) {
	if !o.generator.isCurrent(task) || task != o.currentTask {
		// A superseded task's result is discarded no matter when it lands;
		// it must never touch history.
		return
	}

	if task.State() == TaskCancelled {
		return
	}

	if task.Speculative && o.state == StateListening {
		// Warmed-up result; it waits for the commit decision.
		return
	}
	if o.state != StateGenerating {
		return
	}

	o.stopTone()

	reply := task.Result()
	if reply == "" {
		reply = o.generatorConfig.Apology
	}

	session, err := o.playback.speak(o.baseContext, reply)
	if err != nil {
		logger.Error("failed to start playback", "error", err)
		// The reply never reached the speaker, so neither message is
		// committed; the turn reopens.
		o.currentTask = nil
		o.pendingUtterance = ""
		o.segmenter.reset()
		o.transitionTo(StateListening)
		return
	}

	o.history.append(llms.RoleUser, o.pendingUtterance)
	o.history.append(llms.RoleAssistant, reply)
	if o.callbacks.onReply != nil {
		o.callbacks.onReply(reply)
	}

	o.currentSession = session
	o.pendingUtterance = ""
	o.transitionTo(StateSpeaking)
	go o.awaitPlayback(session)
}

func (o *Orchestrator) awaitPlayback(session *PlaybackSession) {
	<-session.Done()
	o.enqueue(engineEvent{kind: eventPlaybackDone, session: session})
}

func (o *Orchestrator) handlePlaybackDone(session *PlaybackSession) {
	if session != o.currentSession {
		return
	}
	o.playback.clearFinished(session)
	o.currentSession = nil
	o.currentTask = nil

	if o.state != StateSpeaking {
		return
	}
	if err := session.Err(); err != nil {
		logger.Error("playback ended with error", "error", err)
	}
	o.segmenter.reset()
	o.transitionTo(StateListening)
}

func (o *Orchestrator) handleTrigger(event trigger.Event) {
	switch event.Kind {
	case trigger.KindPickedUp:
		o.handlePickup()
	case trigger.KindHungUp:
		o.teardownLocked()
	case trigger.KindDigitDialed:
		o.handleDigit(event.Digit)
	}
}

func (o *Orchestrator) handlePickup() {
	if o.offHook {
		return
	}
	o.offHook = true
	// Dial tone until a digit picks who to talk to.
	if o.tonesEnabled && o.audioClient != nil {
		o.stopTone()
		o.tone = startTone(renderFacade{client: o.audioClient}, o.renderEncoding(), dialToneSpec())
	}
}

func (o *Orchestrator) handleDigit(digit int) {
	if !o.offHook {
		return
	}
	if o.callbacks.onDigit != nil {
		o.callbacks.onDigit(digit)
	}
	if o.conversationActive {
		return
	}

	// Ringback covers the gap while the transcription connection comes up.
	if o.tonesEnabled && o.audioClient != nil {
		o.stopTone()
		o.tone = startTone(renderFacade{client: o.audioClient}, o.renderEncoding(), ringbackSpec())
	}
	o.startConversation()
}

func (o *Orchestrator) startConversation() {
	if err := o.connectTranscriber(); err != nil {
		logger.Error("failed to start transcription", "error", err)
		o.teardownLocked()
		return
	}

	o.stopTone()
	o.conversationActive = true
	o.transcribing.Store(true)
	o.muted.Store(false)
	if !o.transitionTo(StateListening) {
		return
	}

	if o.greeting != "" {
		o.speakLine(o.greeting)
	}
}

// speakLine speaks a canned line (greeting, apology) outside the normal
// turn flow. It is interruptible like any reply but commits no user message.
func (o *Orchestrator) speakLine(text string) {
	session, err := o.playback.speak(o.baseContext, text)
	if err != nil {
		logger.Warn("failed to speak line", "error", err)
		return
	}
	if !o.transitionTo(StateSpeaking) {
		// An untracked session would be unstoppable: barge-in only runs
		// while Speaking.
		o.playback.interrupt()
		return
	}
	o.history.append(llms.RoleAssistant, text)
	if o.callbacks.onReply != nil {
		o.callbacks.onReply(text)
	}
	o.currentSession = session
	go o.awaitPlayback(session)
}

func (o *Orchestrator) connectTranscriber() error {
	encodingInfo := audio.GetDefaultEncodingInfo()
	if o.audioClient != nil {
		encodingInfo = o.audioClient.EncodingInfo()
	}

	return o.speechToText.transcribe(o.baseContext,
		speechtotext.WithTranscriptCallback(func(transcript string) {
			o.enqueue(engineEvent{kind: eventTranscript, transcript: TranscriptEvent{
				Text: transcript, IsFinal: true, Timestamp: time.Now(),
			}})
		}),
		speechtotext.WithInterimTranscriptCallback(func(transcript string) {
			o.enqueue(engineEvent{kind: eventTranscript, transcript: TranscriptEvent{
				Text: transcript, IsFinal: false, Timestamp: time.Now(),
			}})
		}),
		speechtotext.WithDisconnectCallback(func(err error) {
			o.enqueue(engineEvent{kind: eventTranscriberLost, err: err})
		}),
		speechtotext.WithEncodingInfo(encodingInfo),
	)
}

// handleTranscriberLost retries the transcription connection with backoff
// off the engine goroutine; connection loss is recoverable until the retry
// budget runs out.
func (o *Orchestrator) handleTranscriberLost(cause error) {
	if !o.conversationActive {
		return
	}
	logger.Warn("transcription connection lost, reconnecting", "error", cause)
	o.transcribing.Store(false)

	go func() {
		for attempt := 1; attempt <= o.reconnectAttempts; attempt++ {
			select {
			case <-o.closeCh:
				return
			case <-time.After(time.Duration(attempt) * o.reconnectBackoff):
			}

			o.mu.Lock()
			if !o.conversationActive {
				o.mu.Unlock()
				return
			}
			err := o.connectTranscriber()
			if err == nil {
				o.transcribing.Store(true)
				o.mu.Unlock()
				logger.Info("transcription reconnected", "attempt", attempt)
				return
			}
			o.mu.Unlock()
			logger.Warn("transcription reconnect failed", "attempt", attempt, "error", err)
		}

		// Out of retries: say so rather than going quietly mute.
		o.mu.Lock()
		if o.conversationActive {
			o.speakLine(o.generatorConfig.Apology)
		}
		o.mu.Unlock()
	}()
}

// transitionTo moves the state machine, enforcing the transition table. An
// invalid transition is an invariant breach: it panics under strict checks
// and is logged and ignored otherwise. Callers must hold o.mu.
func (o *Orchestrator) transitionTo(to State) bool {
	if o.state == to {
		return true
	}
	if !transitionAllowed(o.state, to) {
		violation := fmt.Sprintf("invalid state transition %s -> %s", o.state, to)
		if o.strict {
			panic(violation)
		}
		logger.Error(violation)
		return false
	}

	o.state = to
	if o.callbacks.onStateChange != nil {
		o.callbacks.onStateChange(to)
	}
	return true
}

func (o *Orchestrator) startThinkingTone() {
	if !o.tonesEnabled || o.audioClient == nil {
		return
	}
	o.stopTone()
	o.tone = startTone(renderFacade{client: o.audioClient}, o.renderEncoding(), thinkingTickSpec())
}

func (o *Orchestrator) stopTone() {
	if o.tone != nil {
		o.tone.Stop()
		o.tone = nil
	}
}

func (o *Orchestrator) renderEncoding() audio.EncodingInfo {
	if o.audioClient != nil {
		return o.audioClient.EncodingInfo()
	}
	return audio.GetDefaultEncodingInfo()
}

// State returns the current conversation state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// History returns a snapshot of the committed conversation.
func (o *Orchestrator) History() []llms.Message {
	return o.history.Messages()
}

// CurrentTranscript returns the displayable text of the utterance being
// accumulated, including the live interim tail.
func (o *Orchestrator) CurrentTranscript() string {
	return o.segmenter.currentTranscript()
}

// Mute stops forwarding captured audio to transcription without stopping
// capture itself.
func (o *Orchestrator) Mute()   { o.muted.Store(true) }
func (o *Orchestrator) Unmute() { o.muted.Store(false) }
func (o *Orchestrator) Muted() bool {
	return o.muted.Load()
}

// Hangup tears the conversation down from any state: the running generation
// is cancelled, playback is interrupted, accumulators are cleared, and the
// transcription connection is closed. Idempotent and safe to call
// concurrently with any in-flight operation.
func (o *Orchestrator) Hangup() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.teardownLocked()
}

func (o *Orchestrator) teardownLocked() {
	o.stopTone()
	o.generator.cancelCurrent()
	o.playback.interrupt()
	o.segmenter.reset()

	o.transcribing.Store(false)
	o.muted.Store(true)
	if err := o.speechToText.close(o.baseContext); err != nil {
		recordedErr := fmt.Errorf("failed to close transcription client: %w", err)
		span := trace.SpanFromContext(o.baseContext)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
	}

	if o.conversationActive && o.summarizer != nil && o.history.Len() > 0 {
		transcript := o.history.Messages()
		go o.summarize(transcript)
	}

	o.history.clear()
	o.currentTask = nil
	o.currentSession = nil
	o.pendingUtterance = ""
	o.offHook = false
	o.conversationActive = false
	o.transitionTo(StateIdle)
}

func (o *Orchestrator) summarize(transcript []llms.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary, err := summarizeCall(ctx, o.summarizer, transcript)
	if err != nil {
		logger.Warn("call summary failed", "error", err)
		return
	}
	logger.Info("call summary", "summary", summary.Summary, "sentiment", summary.Sentiment)
	if o.callbacks.onSummary != nil {
		o.callbacks.onSummary(*summary)
	}
}

// Close shuts the engine down for good: hangs up, stops capture, and stops
// the event loop. Idempotent.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.Hangup()

		if o.watchCancel != nil {
			o.watchCancel()
		}
		close(o.closeCh)
		if o.running.Load() {
			<-o.loopDone
		}

		if o.audioClient != nil {
			if err := o.audioClient.StopCapture(); err != nil {
				recordedErr := fmt.Errorf("failed to stop audio capture: %w", err)
				span := trace.SpanFromContext(o.baseContext)
				span.RecordError(recordedErr)
				span.SetStatus(codes.Error, recordedErr.Error())
			}
		}
	})
}
