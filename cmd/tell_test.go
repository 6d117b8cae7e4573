package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

func TestBuildTellHistory(t *testing.T) {
	h, err := buildTellHistory(tellOptions{}, []string{"Tell me about bees"})
	require.NoError(t, err)
	require.Len(t, h, 1)
	assert.Equal(t, "Tell me about bees", h[0].Text())
	assert.False(t, h.IsVisual())

	h, err = buildTellHistory(tellOptions{image: "https://example.com/bee.jpg"}, []string{"What is this?"})
	require.NoError(t, err)
	assert.True(t, h.IsVisual())

	_, err = buildTellHistory(tellOptions{}, nil)
	assert.Error(t, err)
}

func TestBuildTellHistory_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]`), 0o644))

	h, err := buildTellHistory(tellOptions{historyFile: path}, []string{"and then?"})
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, protocol.RoleUser, h[2].Role)
}

func TestRunTell_PrintsParagraphsAndSavesAudio(t *testing.T) {
	audio := "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString([]byte("mp3-bytes"))
	var gotUser, gotMode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-Storycast-User-Id")
		gotMode = r.URL.Query().Get("query_type")
		enc := json.NewEncoder(w)
		history := protocol.DialogHistory{protocol.TextMessage(protocol.RoleUser, "hi")}
		_ = enc.Encode(protocol.NewProgressRecord(history, protocol.ParagraphUnit{Index: 0, Text: "One.", Audio: audio}))
		_ = enc.Encode(protocol.NewProgressRecord(history, protocol.ParagraphUnit{Index: 1, Text: "Two."}))
	}))
	defer srv.Close()

	dir := t.TempDir()
	var out bytes.Buffer
	err := runTell(&out, tellOptions{server: srv.URL, user: "kid-1", mode: "story", audioDir: dir},
		protocol.DialogHistory{protocol.TextMessage(protocol.RoleUser, "hi")})
	require.NoError(t, err)

	assert.Equal(t, "kid-1", gotUser)
	assert.Equal(t, "story", gotMode)
	assert.Contains(t, out.String(), "[0] One.")
	assert.Contains(t, out.String(), "[1] Two.")
	data, err := os.ReadFile(filepath.Join(dir, "000.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(data))
}

func TestRunTell_TerminalRecordIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(protocol.NewErrorRecord(nil, "completion failed"))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := runTell(&out, tellOptions{server: srv.URL, user: "kid-1", mode: "story"},
		protocol.DialogHistory{protocol.TextMessage(protocol.RoleUser, "hi")})
	require.ErrorIs(t, err, protocol.ErrStreamFailed)
	assert.Contains(t, err.Error(), "completion failed")
}

func TestRunTell_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_REQUEST","message":"dialogHistory: must not be empty"}}`))
	}))
	defer srv.Close()

	err := runTell(&bytes.Buffer{}, tellOptions{server: srv.URL, user: "kid-1"},
		protocol.DialogHistory{protocol.TextMessage(protocol.RoleUser, "hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_REQUEST")
}

func TestSaveAudio_RejectsNonDataURI(t *testing.T) {
	_, err := saveAudio(t.TempDir(), 0, "https://example.com/a.mp3")
	assert.Error(t, err)
}
