package http

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/nextlevelbuilder/storycast/internal/logging"
	"github.com/nextlevelbuilder/storycast/internal/providers"
	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

// DefaultMaxAudioBytes matches the upstream transcription upload limit.
const DefaultMaxAudioBytes = 25 << 20

// TranscriptionsHandler serves POST /v1/audio/transcriptions: a recorded
// question from the child in, its text out.
type TranscriptionsHandler struct {
	transcriber providers.Transcriber // nil when the provider cannot transcribe
	limiter     RateLimiter
	token       string
	maxBody     int64
}

func NewTranscriptionsHandler(t providers.Transcriber, limiter RateLimiter, token string) *TranscriptionsHandler {
	return &TranscriptionsHandler{transcriber: t, limiter: limiter, token: token, maxBody: DefaultMaxAudioBytes}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (h *TranscriptionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	userID := authenticate(w, r, h.token)
	if userID == "" {
		return
	}
	if h.limiter != nil {
		if ok, retry := h.limiter.Allow("user:" + userID); !ok {
			writeRateLimited(w, retry)
			return
		}
	}
	if h.transcriber == nil {
		writeError(w, http.StatusNotImplemented, protocol.ErrNotImplemented, "transcription is not supported by the configured provider")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		writeRequestError(w, protocol.Invalid("file", "expected multipart form with an audio file"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeRequestError(w, protocol.Invalid("file", "audio file is required"))
		return
	}
	defer file.Close()

	text, err := h.transcriber.Transcribe(r.Context(), providers.TranscribeRequest{
		Filename: filepath.Base(header.Filename),
		Audio:    file,
		Language: r.FormValue("language"),
	})
	if errors.Is(err, providers.ErrTranscriptionUnsupported) {
		writeError(w, http.StatusNotImplemented, protocol.ErrNotImplemented, err.Error())
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Warn("transcription.failed", "user", userID, "error", err)
		writeError(w, http.StatusBadGateway, protocol.ErrUnavailable, "transcription failed")
		return
	}
	writeJSON(w, http.StatusOK, transcriptionResponse{Text: text})
}
