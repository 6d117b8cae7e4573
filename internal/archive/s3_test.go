package archive

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/storycast/internal/tts"
)

type mockUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
	block   chan struct{}
}

func (m *mockUploader) Upload(ctx context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	data, _ := io.ReadAll(in.Body)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
		m.types = map[string]string{}
	}
	m.objects[aws.ToString(in.Key)] = data
	m.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &manager.UploadOutput{}, nil
}

func clip(s string) *tts.SynthResult {
	return &tts.SynthResult{Audio: []byte(s), Extension: "mp3", MimeType: "audio/mpeg"}
}

func TestArchiveUploadsUnderRunKey(t *testing.T) {
	up := &mockUploader{}
	a := NewWithUploader(up, Config{Bucket: "b", Prefix: "/stories/"})

	a.Archive("run-1", 0, clip("zero"))
	a.Archive("run-1", 1, clip("one"))
	require.NoError(t, a.Close(context.Background()))

	assert.Equal(t, []byte("zero"), up.objects["stories/run-1/0.mp3"])
	assert.Equal(t, []byte("one"), up.objects["stories/run-1/1.mp3"])
	assert.Equal(t, "audio/mpeg", up.types["stories/run-1/0.mp3"])
}

func TestArchiveKeyWithoutPrefix(t *testing.T) {
	a := NewWithUploader(&mockUploader{}, Config{Bucket: "b"})
	assert.Equal(t, "run/3.ogg", a.Key("run", 3, "ogg"))
}

func TestArchiveFailureIsSwallowed(t *testing.T) {
	a := NewWithUploader(&mockUploader{err: errors.New("access denied")}, Config{Bucket: "b"})
	a.Archive("run", 0, clip("x"))
	assert.NoError(t, a.Close(context.Background()))
}

func TestArchiveDropsWhenBusy(t *testing.T) {
	up := &mockUploader{block: make(chan struct{})}
	a := NewWithUploader(up, Config{Bucket: "b", Concurrency: 1})

	a.Archive("run", 0, clip("first"))
	a.Archive("run", 1, clip("dropped"))
	close(up.block)
	require.NoError(t, a.Close(context.Background()))

	assert.Len(t, up.objects, 1)
	assert.Contains(t, up.objects, "run/0.mp3")
}

func TestArchiveCloseHonorsDeadline(t *testing.T) {
	up := &mockUploader{block: make(chan struct{})}
	a := NewWithUploader(up, Config{Bucket: "b"})
	a.Archive("run", 0, clip("stuck"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Close(ctx), context.DeadlineExceeded)
}
