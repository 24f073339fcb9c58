package dialog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evkarin/switchboard/core/texttospeech"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PlaybackSession is one reply being spoken. At most one session is active
// per conversation; the orchestrator enforces that.
type PlaybackSession struct {
	ID        uuid.UUID
	StartedAt time.Time

	interrupted atomic.Bool
	bytesSent   atomic.Int64

	finishOnce sync.Once
	finishedAt time.Time
	err        error
	done       chan struct{}
}

func newPlaybackSession() *PlaybackSession {
	return &PlaybackSession{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Interrupted reports whether the session was cut short by a barge-in.
func (s *PlaybackSession) Interrupted() bool { return s.interrupted.Load() }

// Done closes when playback finished, was interrupted, or failed.
func (s *PlaybackSession) Done() <-chan struct{} { return s.done }

// Err is only meaningful once Done is closed.
func (s *PlaybackSession) Err() error { return s.err }

func (s *PlaybackSession) finish(err error) {
	s.finishOnce.Do(func() {
		s.finishedAt = time.Now()
		s.err = err
		close(s.done)
	})
}

// renderer is the slice of the audio collaborator playback needs.
type renderer interface {
	SendAudio(chunk []byte) error
	ClearBuffer()
}

// SpeechSynthesizer is the text-to-speech collaborator contract.
type SpeechSynthesizer interface {
	NewSpeechStream(ctx context.Context, opts ...texttospeech.SynthesisOption) (texttospeech.SpeechStream, error)
}

// playbackController streams synthesized audio to the render device chunk by
// chunk, so first sound is bounded by synthesis latency and an interrupt is
// bounded by one chunk's duration, never by the reply's length.
type playbackController struct {
	synthesizer SpeechSynthesizer
	render      renderer

	mu     sync.Mutex
	active *PlaybackSession
	stream texttospeech.SpeechStream
}

func newPlaybackController(synthesizer SpeechSynthesizer, render renderer) *playbackController {
	return &playbackController{synthesizer: synthesizer, render: render}
}

// speak starts speaking text and returns the live session. The returned
// session's Done channel closes when all speech was produced or the session
// was interrupted; the render device keeps draining its last buffered chunk
// after that.
func (p *playbackController) speak(ctx context.Context, text string) (*PlaybackSession, error) {
	ctx, span := tracer.Start(ctx, "speak reply")
	defer span.End()

	if p.synthesizer == nil {
		return nil, fmt.Errorf("no speech synthesizer configured")
	}

	session := newPlaybackSession()
	span.SetAttributes(attribute.String("playback.id", session.ID.String()))

	stream, err := p.synthesizer.NewSpeechStream(ctx,
		texttospeech.WithAudioChunkCallback(func(chunk []byte) {
			// The interrupt flag is checked between chunk writes; once set,
			// nothing more reaches the device.
			if session.interrupted.Load() {
				return
			}
			if err := p.render.SendAudio(chunk); err != nil {
				logger.Warn("failed to render audio chunk", "error", err)
				return
			}
			session.bytesSent.Add(int64(len(chunk)))
		}),
		texttospeech.WithSpeechEndedCallback(func() {
			session.finish(nil)
		}),
		texttospeech.WithErrorCallback(func(err error) {
			session.finish(fmt.Errorf("synthesis failed: %w", err))
		}),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open speech stream")
		return nil, fmt.Errorf("failed to open speech stream: %w", err)
	}

	p.mu.Lock()
	p.active = session
	p.stream = stream
	p.mu.Unlock()

	// The stream closes itself on every terminal path: completion closes it
	// after the ended callback, interruption and teardown go through Cancel.
	if err := stream.SendText(text); err != nil {
		p.release(session)
		return nil, fmt.Errorf("failed to send text for synthesis: %w", err)
	}
	if err := stream.EndOfText(); err != nil {
		p.release(session)
		return nil, fmt.Errorf("failed to finish synthesis request: %w", err)
	}

	return session, nil
}

// interrupt stops the active session: no further chunks are written, audio
// already buffered on the device is dropped, and the synthesis stream is
// cancelled. Safe to call repeatedly and with no session active.
func (p *playbackController) interrupt() {
	p.mu.Lock()
	session := p.active
	stream := p.stream
	p.active = nil
	p.stream = nil
	p.mu.Unlock()

	if session == nil {
		return
	}
	session.interrupted.Store(true)
	if stream != nil {
		if err := stream.Cancel(); err != nil {
			logger.Warn("failed to cancel speech stream", "error", err)
		}
	}
	p.render.ClearBuffer()
	session.finish(nil)
}

// release drops a session that failed to start, closing its stream.
func (p *playbackController) release(session *PlaybackSession) {
	p.mu.Lock()
	stream := p.stream
	if p.active == session {
		p.active = nil
		p.stream = nil
	}
	p.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	session.finish(nil)
}

// activeSession returns the live session, or nil.
func (p *playbackController) activeSession() *PlaybackSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// clearFinished drops the slot once a session completed naturally.
func (p *playbackController) clearFinished(session *PlaybackSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == session {
		p.active = nil
		p.stream = nil
	}
}
