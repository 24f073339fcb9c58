package texttospeech

import "github.com/evkarin/switchboard/core/audio"

type SynthesisOptions struct {
	// AudioChunkCallback is called for every encoded audio chunk as it
	// arrives from the synthesizer.
	AudioChunkCallback func(chunk []byte)
	// SpeechEndedCallback is called once all requested speech has been
	// produced.
	SpeechEndedCallback func()
	// ErrorCallback is called when the synthesizer fails; the stream is
	// unusable afterwards.
	ErrorCallback func(err error)

	EncodingInfo audio.EncodingInfo
}

type SynthesisOption func(*SynthesisOptions)

func WithAudioChunkCallback(callback func(chunk []byte)) SynthesisOption {
	return func(o *SynthesisOptions) { o.AudioChunkCallback = callback }
}

func WithSpeechEndedCallback(callback func()) SynthesisOption {
	return func(o *SynthesisOptions) { o.SpeechEndedCallback = callback }
}

func WithErrorCallback(callback func(err error)) SynthesisOption {
	return func(o *SynthesisOptions) { o.ErrorCallback = callback }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

// SpeechStream is one in-flight synthesis request. Text can be fed
// incrementally; audio arrives through the AudioChunkCallback.
type SpeechStream interface {
	// SendText queues more text for synthesis. Speech is guaranteed to be
	// produced in the order text is sent.
	//
	// SendText errors if EndOfText, Cancel or Close has been called.
	SendText(text string) error
	// EndOfText signals that no more text will be sent. The stream closes
	// itself once all remaining speech has been produced.
	//
	// Repeated calls are ignored.
	EndOfText() error
	// Cancel abandons any speech not yet produced and closes the stream.
	//
	// Repeated calls are ignored.
	Cancel() error
	// Close releases the stream immediately. No callbacks fire afterwards.
	//
	// Repeated calls are ignored.
	Close() error
}
