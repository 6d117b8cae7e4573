// Package http exposes the story stream, transcription and health endpoints.
package http

import "net/http"

// Routes are the handlers mounted by NewMux.
type Routes struct {
	Story          *StoryHandler
	Transcriptions *TranscriptionsHandler // nil leaves the endpoint unmounted
	Version        string
}

// NewMux builds the gateway handler with middleware applied.
func NewMux(rt Routes) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/story", rt.Story)
	if rt.Transcriptions != nil {
		mux.Handle("/v1/audio/transcriptions", rt.Transcriptions)
	}
	mux.Handle("/health", HealthHandler(rt.Version))
	return withMiddleware(mux)
}
