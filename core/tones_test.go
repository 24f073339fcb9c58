package dialog

import (
	"testing"
	"time"

	"github.com/evkarin/switchboard/core/audio"
)

func TestToneChunkIsContinuousAudio(t *testing.T) {
	player := &tonePlayer{encoding: audio.GetDefaultEncodingInfo(), spec: dialToneSpec()}

	frames := 1600
	chunk := player.chunk(0, frames)
	if len(chunk) != frames*2 {
		t.Fatalf("expected %d bytes of 16-bit audio, got %d", frames*2, len(chunk))
	}

	nonZero := 0
	for _, b := range chunk {
		if b != 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		t.Fatalf("expected a continuous tone to carry signal")
	}
}

func TestToneCadenceGoesSilentInOffPhase(t *testing.T) {
	encoding := audio.GetDefaultEncodingInfo()
	player := &tonePlayer{encoding: encoding, spec: ringbackSpec()}

	// Sample well inside the off phase of the 2s-on/4s-off cadence.
	offStart := encoding.SampleRate * 3
	chunk := player.chunk(offStart, 1600)
	for i, b := range chunk {
		if b != 0 {
			t.Fatalf("expected silence in the off phase, got byte %d at %d", b, i)
		}
	}

	onChunk := player.chunk(0, 1600)
	silent := true
	for _, b := range onChunk {
		if b != 0 {
			silent = false
			break
		}
	}
	if silent {
		t.Fatalf("expected signal in the on phase")
	}
}

func TestToneTranscodesForPhoneLineEncoding(t *testing.T) {
	device := &stubAudioClient{}
	player := &tonePlayer{
		render:   renderFacade{client: device},
		encoding: audio.GetPhoneLineEncodingInfo(),
		spec:     dialToneSpec(),
	}

	frames := 800
	if err := player.sendChunk(0, frames); err != nil {
		t.Fatalf("expected chunk to send, got %v", err)
	}
	if got := len(device.lastRendered()); got != frames {
		t.Fatalf("expected %d bytes of mu-law audio, got %d", frames, got)
	}
}

func TestTonePlayerStopsAndClears(t *testing.T) {
	device := &stubAudioClient{}
	player := startTone(renderFacade{client: device}, audio.GetDefaultEncodingInfo(), dialToneSpec())

	waitFor(t, time.Second, func() bool { return device.rendered() >= 1 }, "tone audio to render")

	player.Stop()
	player.Stop()

	if device.cleared() == 0 {
		t.Fatalf("expected the device buffer to be cleared on stop")
	}

	rendered := device.rendered()
	time.Sleep(250 * time.Millisecond)
	if device.rendered() != rendered {
		t.Fatalf("expected no audio after stop")
	}
}
