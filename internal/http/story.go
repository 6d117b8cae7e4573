package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/storycast/internal/guard"
	"github.com/nextlevelbuilder/storycast/internal/logging"
	"github.com/nextlevelbuilder/storycast/internal/pipeline"
	"github.com/nextlevelbuilder/storycast/internal/prompt"
	"github.com/nextlevelbuilder/storycast/internal/store"
	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

// DefaultMaxBodyBytes bounds a story request body when no limit is configured.
const DefaultMaxBodyBytes = 8 << 20

// RateLimiter admits requests per key.
type RateLimiter interface {
	Allow(key string) (bool, time.Duration)
}

// VoiceResolver maps a product voice ID to a provider voice.
type VoiceResolver interface {
	ResolveVoice(productVoice string) string
}

// StoryDefaults apply when the profile leaves a value unset.
type StoryDefaults struct {
	YearOfBirth int
}

// StoryHandler serves POST /v1/story: one dialog history in, one NDJSON
// stream of narrated paragraphs out.
type StoryHandler struct {
	pipeline *pipeline.Pipeline
	users    store.UserStore
	voices   VoiceResolver
	guard    *guard.Guard
	limiter  RateLimiter
	token    string
	maxBody  int64
	defaults atomic.Value // StoryDefaults
	now      func() time.Time
}

// StoryHandlerConfig wires a StoryHandler. Voices, Guard and Limiter are optional.
type StoryHandlerConfig struct {
	Pipeline     *pipeline.Pipeline
	Users        store.UserStore
	Voices       VoiceResolver
	Guard        *guard.Guard
	Limiter      RateLimiter
	Token        string
	MaxBodyBytes int64
	Defaults     StoryDefaults
}

func NewStoryHandler(cfg StoryHandlerConfig) *StoryHandler {
	h := &StoryHandler{
		pipeline: cfg.Pipeline,
		users:    cfg.Users,
		voices:   cfg.Voices,
		guard:    cfg.Guard,
		limiter:  cfg.Limiter,
		token:    cfg.Token,
		maxBody:  cfg.MaxBodyBytes,
		now:      time.Now,
	}
	if h.maxBody <= 0 {
		h.maxBody = DefaultMaxBodyBytes
	}
	h.defaults.Store(cfg.Defaults)
	return h
}

// SetDefaults replaces the profile fallbacks.
func (h *StoryHandler) SetDefaults(d StoryDefaults) { h.defaults.Store(d) }

type storyRequest struct {
	DialogHistory protocol.DialogHistory `json:"dialogHistory"`
}

func (h *StoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	req, err := h.parseRequest(w, r)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, protocol.ErrInvalidRequest,
				fmt.Sprintf("request body exceeds %d bytes", mbe.Limit))
			return
		}
		writeRequestError(w, err)
		return
	}

	latest := req.History.LatestUser()
	if h.guard != nil && h.guard.Check(userID, latest.Text()) {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "message rejected by content guard")
		return
	}

	ctx := store.WithUserID(r.Context(), userID)
	profile, err := h.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, protocol.ErrNotFound, "user not found")
		return
	}
	if err != nil {
		logging.FromContext(ctx).Error("story.user_lookup_failed", "user", userID, "error", err)
		writeError(w, http.StatusServiceUnavailable, protocol.ErrUnavailable, "user profile unavailable")
		return
	}

	yob := profile.YearOfBirth
	if yob == 0 {
		yob = h.defaults.Load().(StoryDefaults).YearOfBirth
	}
	req.Age = prompt.AgeFromYearOfBirth(yob, h.now())
	if h.voices != nil {
		req.Voice = h.voices.ResolveVoice(profile.PreferredVoice)
	}
	req.RunID = uuid.NewString()

	logger := logging.FromContext(ctx).With("run_id", req.RunID)
	logger.Info("story stream request", "mode", req.Mode, "user", userID,
		"history_len", len(req.History), "visual", req.History.IsVisual(), "task", req.Task)

	sink := newNDJSONSink(w)
	res, err := h.pipeline.Run(ctx, req, sink)
	if err != nil {
		var ve *protocol.ValidationError
		if errors.As(err, &ve) {
			// Run validates before touching the sink.
			writeRequestError(w, err)
			return
		}
		logger.Warn("story stream failed", "error", err, "emitted", res.Emitted, "delivered", sink.Lines())
		return
	}

	if req.Mode == prompt.ModeStory {
		h.countStory(ctx, userID)
	}
}

// parseRequest decodes the body and query parameters and validates the result.
func (h *StoryHandler) parseRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, error) {
	var req pipeline.Request
	q := r.URL.Query()

	mode, err := prompt.ParseMode(q.Get("query_type"))
	if err != nil {
		return req, protocol.Invalid("query_type", err.Error())
	}
	localTime, err := prompt.ParseLocalTime(q.Get("current_time"))
	if err != nil {
		return req, protocol.Invalid("current_time", err.Error())
	}
	task, err := prompt.ParseVisualTask(q.Get("visual_task"))
	if err != nil {
		return req, protocol.Invalid("visual_task", err.Error())
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var body storyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return req, err
		}
		return req, protocol.Invalid("body", fmt.Sprintf("invalid JSON: %v", err))
	}

	req = pipeline.Request{
		History:   body.DialogHistory,
		Mode:      mode,
		Task:      task,
		LocalTime: localTime,
	}
	return req, pipeline.Validate(req)
}

func (h *StoryHandler) countStory(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.users.IncrementStoryCount(ctx, userID); err != nil {
		slog.Warn("story.count_failed", "user", userID, "error", err)
	}
}
