package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-studio-server/modules/common/config"
)

// s3Stub - answers 200 to every request and records method + path
type s3Stub struct {
	mu       sync.Mutex
	requests []string
}

func (s *s3Stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.mu.Unlock()
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

func (s *s3Stub) seen(prefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if strings.HasPrefix(r, prefix) {
			return true
		}
	}
	return false
}

func newTestMirror(t *testing.T, stub *s3Stub) *Mirror {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	m, err := NewMirror(&config.Config{
		MirrorEndpoint:  strings.TrimPrefix(srv.URL, "http://"),
		MirrorAccessKey: "access",
		MirrorSecretKey: "secret",
		MirrorBucket:    "studio",
		MirrorRegion:    "us-east-1",
	})
	require.NoError(t, err)
	return m
}

func TestMirrorRetriesBucketCheckAfterFailure(t *testing.T) {
	stub := &s3Stub{}
	m := newTestMirror(t, stub)

	s := newTestStore(t)
	writeFile(t, s, GeneratedImage, "a.png", "png")
	a := s.artifact(GeneratedImage, "a.png")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, m.Upload(cancelled, a))
	assert.False(t, m.ready)

	require.NoError(t, m.Upload(context.Background(), a))
	assert.True(t, m.ready)
	assert.True(t, stub.seen("PUT /studio/generated_images/a.png"))
}

func TestMirrorChecksBucketOnce(t *testing.T) {
	stub := &s3Stub{}
	m := newTestMirror(t, stub)

	require.NoError(t, m.ensureBucket(context.Background()))
	stub.mu.Lock()
	stub.requests = nil
	stub.mu.Unlock()

	require.NoError(t, m.ensureBucket(context.Background()))
	assert.False(t, stub.seen("HEAD "))
}
