// Package tts turns paragraph text into audio clips.
//
// Supported providers: OpenAI, ElevenLabs.
package tts

import (
	"context"
	"encoding/base64"
	"errors"
)

var (
	// ErrInputTooLong is returned without calling a provider when the text exceeds the length cap.
	ErrInputTooLong = errors.New("tts input too long")
	// ErrNothingToSay is returned without calling a provider when no speakable
	// text is left once markup is stripped.
	ErrNothingToSay = errors.New("tts input has no speakable text")
	// ErrProviderNotFound is returned when the configured provider is not registered.
	ErrProviderNotFound = errors.New("tts provider not found")
)

// Provider synthesizes text into audio bytes.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, opts Options) (*SynthResult, error)
}

// Options controls synthesis parameters.
type Options struct {
	Voice  string // provider-specific voice ID
	Model  string // provider-specific model ID
	Format string // "mp3" (default) or "opus"
}

// SynthResult is the output of a TTS synthesis.
type SynthResult struct {
	Audio     []byte // raw audio bytes
	Extension string // file extension without dot: "mp3", "ogg"
	MimeType  string // e.g. "audio/mpeg", "audio/ogg"
}

// DataURI encodes the clip as "data:<mime>;base64,<payload>".
func (r *SynthResult) DataURI() string {
	return "data:" + r.MimeType + ";base64," + base64.StdEncoding.EncodeToString(r.Audio)
}

func formatInfo(format string) (ext, mime string) {
	if format == "opus" {
		return "ogg", "audio/ogg"
	}
	return "mp3", "audio/mpeg"
}
