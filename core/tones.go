package dialog

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/evkarin/switchboard/core/audio"
)

// toneSpec describes a call-progress tone: one or more sine components and an
// on/off cadence. A zero off duration makes the tone continuous.
type toneSpec struct {
	frequencies []float64
	amplitude   float64
	on          time.Duration
	off         time.Duration
}

// Standard North American precise tone plan frequencies.
func dialToneSpec() toneSpec {
	return toneSpec{frequencies: []float64{350, 440}, amplitude: 0.25}
}

func ringbackSpec() toneSpec {
	return toneSpec{
		frequencies: []float64{440, 480},
		amplitude:   0.25,
		on:          2 * time.Second,
		off:         4 * time.Second,
	}
}

// thinkingTickSpec is the short periodic tick played while a reply is being
// composed, so the line never sounds dead.
func thinkingTickSpec() toneSpec {
	return toneSpec{
		frequencies: []float64{1000},
		amplitude:   0.12,
		on:          60 * time.Millisecond,
		off:         940 * time.Millisecond,
	}
}

const toneChunkInterval = 100 * time.Millisecond

// tonePlayer renders a tone in the background until stopped. It is owned by
// the state it accompanies and must be stopped on every exit from that
// state; Stop is idempotent.
type tonePlayer struct {
	render   renderer
	encoding audio.EncodingInfo
	spec     toneSpec

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func startTone(render renderer, encoding audio.EncodingInfo, spec toneSpec) *tonePlayer {
	player := &tonePlayer{
		render:   render,
		encoding: encoding,
		spec:     spec,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go player.run()
	return player
}

func (p *tonePlayer) run() {
	defer close(p.done)

	chunkFrames := int(float64(p.encoding.SampleRate) * toneChunkInterval.Seconds())
	offset := 0

	// Prime one chunk so the tone is audible before the first tick.
	if err := p.sendChunk(offset, chunkFrames); err != nil {
		return
	}
	offset += chunkFrames

	ticker := time.NewTicker(toneChunkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			if err := p.sendChunk(offset, chunkFrames); err != nil {
				return
			}
			offset += chunkFrames
		}
	}
}

// sendChunk renders one chunk and transcodes it when the device speaks a
// G.711 format instead of linear PCM.
func (p *tonePlayer) sendChunk(offset, frames int) error {
	chunk := p.chunk(offset, frames)
	if p.encoding.Format != audio.EncodingLinear16 {
		transcoded, err := audio.Transcode(chunk,
			audio.EncodingInfo{SampleRate: p.encoding.SampleRate, Format: audio.EncodingLinear16},
			p.encoding)
		if err != nil {
			return err
		}
		chunk = transcoded
	}
	return p.render.SendAudio(chunk)
}

// chunk renders frames samples of the tone starting at an absolute sample
// offset, keeping phase and cadence continuous across chunks.
func (p *tonePlayer) chunk(offset, frames int) []byte {
	sampleRate := float64(p.encoding.SampleRate)
	cycleFrames := 0
	onFrames := 0
	if p.spec.off > 0 {
		onFrames = int(sampleRate * p.spec.on.Seconds())
		cycleFrames = onFrames + int(sampleRate*p.spec.off.Seconds())
	}

	out := make([]byte, frames*2)
	peak := p.spec.amplitude * float64(math.MaxInt16) / float64(len(p.spec.frequencies))
	for i := 0; i < frames; i++ {
		position := offset + i
		if cycleFrames > 0 && position%cycleFrames >= onFrames {
			continue
		}
		sample := 0.0
		for _, frequency := range p.spec.frequencies {
			sample += peak * math.Sin(2*math.Pi*frequency*float64(position)/sampleRate)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sample)))
	}
	return out
}

// Stop ends the tone and drops whatever of it is still buffered on the
// device. Safe to call repeatedly.
func (p *tonePlayer) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		<-p.done
		p.render.ClearBuffer()
	})
}
