package speechtotext

import "github.com/evkarin/switchboard/core/audio"

type TranscriptionOptions struct {
	// InterimTranscriptCallback is called with the current, still mutable
	// transcript of in-progress speech.
	InterimTranscriptCallback func(transcript string)
	// TranscriptCallback is called with a finalized transcript segment. The
	// segment is immutable, it will never be revised.
	TranscriptCallback func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	// DisconnectCallback is called when the transcription stream drops. The
	// consumer decides whether to reconnect.
	DisconnectCallback func(err error)

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithInterimTranscriptCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptCallback = callback
	}
}

func WithTranscriptCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithDisconnectCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.DisconnectCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
