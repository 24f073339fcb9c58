package dialog

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPlaybackStreamsChunksToRenderer(t *testing.T) {
	synth := &stubSynthesizer{manual: true}
	device := &stubAudioClient{}
	p := newPlaybackController(synth, renderFacade{client: device})

	session, err := p.speak(context.Background(), "Blue, like the sky.")
	if err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	stream := synth.stream(0)
	if got := stream.sentText(); len(got) != 1 || got[0] != "Blue, like the sky." {
		t.Fatalf("expected reply text sent for synthesis, got %v", got)
	}

	stream.emit(make([]byte, 320))
	stream.emit(make([]byte, 320))
	if device.rendered() != 2 {
		t.Fatalf("expected chunks forwarded as they arrive, got %d", device.rendered())
	}

	stream.complete()
	select {
	case <-session.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected session to finish after the ended signal")
	}
	if session.Interrupted() {
		t.Fatalf("expected a natural completion not to be marked interrupted")
	}
	if session.Err() != nil {
		t.Fatalf("expected no session error, got %v", session.Err())
	}
}

func TestPlaybackInterruptStopsBetweenChunks(t *testing.T) {
	synth := &stubSynthesizer{manual: true}
	device := &stubAudioClient{}
	p := newPlaybackController(synth, renderFacade{client: device})

	session, err := p.speak(context.Background(), "a long reply that will be cut short")
	if err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	stream := synth.stream(0)
	stream.emit(make([]byte, 320))

	p.interrupt()

	// Chunks arriving after the interrupt never reach the device.
	stream.emit(make([]byte, 320))
	stream.emit(make([]byte, 320))
	if device.rendered() != 1 {
		t.Fatalf("expected no writes after interrupt, got %d", device.rendered())
	}
	if device.cleared() == 0 {
		t.Fatalf("expected buffered audio to be dropped on interrupt")
	}
	if !stream.wasCancelled() {
		t.Fatalf("expected the synthesis stream to be cancelled")
	}

	select {
	case <-session.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected session to finish on interrupt")
	}
	if !session.Interrupted() {
		t.Fatalf("expected session marked interrupted")
	}
	if p.activeSession() != nil {
		t.Fatalf("expected no active session after interrupt")
	}
}

func TestPlaybackInterruptIsIdempotent(t *testing.T) {
	synth := &stubSynthesizer{manual: true}
	device := &stubAudioClient{}
	p := newPlaybackController(synth, renderFacade{client: device})

	if _, err := p.speak(context.Background(), "hello"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	p.interrupt()
	p.interrupt()
	p.interrupt()
}

func TestPlaybackSynthesisErrorFinishesSession(t *testing.T) {
	synth := &stubSynthesizer{manual: true}
	device := &stubAudioClient{}
	p := newPlaybackController(synth, renderFacade{client: device})

	session, err := p.speak(context.Background(), "doomed reply")
	if err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	synth.stream(0).fail(errors.New("synthesis exploded"))

	select {
	case <-session.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected session to finish on synthesis error")
	}
	if session.Err() == nil {
		t.Fatalf("expected session error to be recorded")
	}
}

func TestPlaybackWithoutSynthesizerFails(t *testing.T) {
	p := newPlaybackController(nil, renderFacade{})
	if _, err := p.speak(context.Background(), "anyone"); err == nil {
		t.Fatalf("expected an error without a synthesizer")
	}
}

func TestPlaybackFailedStreamOpenSurfacesError(t *testing.T) {
	synth := &stubSynthesizer{failure: errors.New("no connection")}
	p := newPlaybackController(synth, renderFacade{})

	if _, err := p.speak(context.Background(), "hello"); err == nil {
		t.Fatalf("expected stream open failure to surface")
	}
}
