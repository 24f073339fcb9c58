package audio

import (
	"fmt"

	"github.com/zaf/g711"
)

// Transcode converts a chunk between the engine's supported encodings. Sample
// rates are not resampled; callers are expected to keep STT, TTS and the
// device on the same clock and only change the sample format (the usual case
// when bridging a 16-bit device to a G.711 phone line).
func Transcode(chunk []byte, from, to EncodingInfo) ([]byte, error) {
	if from.Format == to.Format {
		return chunk, nil
	}

	switch {
	case from.Format == EncodingLinear16 && to.Format == EncodingMulaw:
		return g711.EncodeUlaw(chunk), nil
	case from.Format == EncodingLinear16 && to.Format == EncodingALaw:
		return g711.EncodeAlaw(chunk), nil
	case from.Format == EncodingMulaw && to.Format == EncodingLinear16:
		return g711.DecodeUlaw(chunk), nil
	case from.Format == EncodingALaw && to.Format == EncodingLinear16:
		return g711.DecodeAlaw(chunk), nil
	case from.Format == EncodingMulaw && to.Format == EncodingALaw:
		return g711.Ulaw2Alaw(chunk), nil
	case from.Format == EncodingALaw && to.Format == EncodingMulaw:
		return g711.Alaw2Ulaw(chunk), nil
	}

	return nil, fmt.Errorf("unsupported transcode: %s to %s", from.Format.Name(), to.Format.Name())
}
