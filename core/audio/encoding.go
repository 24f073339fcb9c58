package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"

	// PhoneLineSampleRate is the narrowband rate used when the engine feeds
	// a telephone-style G.711 path instead of a local device.
	PhoneLineSampleRate = 8000
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

// GetPhoneLineEncodingInfo describes the 8 kHz mu-law stream of an analog
// phone line front-end.
func GetPhoneLineEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: PhoneLineSampleRate, Format: EncodingMulaw}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

// ChunkDuration reports how long the given chunk takes to play back.
func (e EncodingInfo) ChunkDuration(chunk []byte) time.Duration {
	byteSize := e.Format.ByteSize()
	if byteSize <= 0 || e.SampleRate <= 0 {
		return 0
	}

	samples := len(chunk) / byteSize
	return time.Duration(samples) * time.Second / time.Duration(e.SampleRate)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
