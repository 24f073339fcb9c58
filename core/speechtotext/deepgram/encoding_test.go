package deepgram

import (
	"testing"

	"github.com/evkarin/switchboard/core/audio"
)

func TestConvertEncodingDefault(t *testing.T) {
	encoding, err := convertEncoding(audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("expected default encoding to convert, got %v", err)
	}
	if encoding.Format != encodingLinear16 {
		t.Fatalf("expected linear16 format, got %q", encoding.Format)
	}
	if encoding.SampleRate != audio.DefaultSampleRate {
		t.Fatalf("expected sample rate %d, got %d", audio.DefaultSampleRate, encoding.SampleRate)
	}
}

func TestConvertEncodingPhoneLine(t *testing.T) {
	encoding, err := convertEncoding(audio.GetPhoneLineEncodingInfo())
	if err != nil {
		t.Fatalf("expected phone-line encoding to convert, got %v", err)
	}
	if encoding.Format != encodingMulaw {
		t.Fatalf("expected mulaw format, got %q", encoding.Format)
	}
	if encoding.SampleRate != audio.PhoneLineSampleRate {
		t.Fatalf("expected sample rate %d, got %d", audio.PhoneLineSampleRate, encoding.SampleRate)
	}
}

func TestConvertEncodingRejectsWidebandMulaw(t *testing.T) {
	if _, err := convertEncoding(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}); err == nil {
		t.Fatalf("expected 16 kHz mulaw to be rejected")
	}
}

func TestConvertEncodingRejectsUnknownSampleRate(t *testing.T) {
	if _, err := convertEncoding(audio.EncodingInfo{SampleRate: 44100, Format: audio.EncodingLinear16}); err == nil {
		t.Fatalf("expected 44.1 kHz to be rejected")
	}
}
