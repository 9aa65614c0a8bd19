package veo3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-studio-server/modules/common/model"
	"media-studio-server/modules/common/storage"
)

// scriptedBackend - reports done after pendingPolls refreshes
type scriptedBackend struct {
	mu           sync.Mutex
	pendingPolls int
	refreshes    int
	final        Operation
	video        []byte
	submitted    []byte
	negative     string
}

func (b *scriptedBackend) Submit(ctx context.Context, prompt string, image []byte, negativePrompt string) (*Operation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = image
	b.negative = negativePrompt
	if b.pendingPolls == 0 {
		op := b.final
		return &op, nil
	}
	return &Operation{Name: "operations/test"}, nil
}

func (b *scriptedBackend) Refresh(ctx context.Context, op *Operation) (*Operation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshes++
	if b.refreshes < b.pendingPolls {
		return &Operation{Name: op.Name}, nil
	}
	final := b.final
	return &final, nil
}

func (b *scriptedBackend) Download(ctx context.Context, op *Operation) ([]byte, error) {
	return b.video, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (p *recordingPublisher) Publish(jobID string, event any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(ProgressEvent))
}

func (p *recordingPublisher) last(t *testing.T) ProgressEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.events)
	return p.events[len(p.events)-1]
}

func doneOperation(videos int) Operation {
	return Operation{Name: "operations/test", Done: true, HasResponse: true, Videos: videos}
}

func newTestService(t *testing.T, backend VideoBackend) (*Service, *storage.Store) {
	t.Helper()
	store := storage.NewStoreAt(t.TempDir())
	require.NoError(t, store.EnsureDirs())

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(storage.Uploaded), "cat.png"), buf.Bytes(), 0o644))

	cfg := &Config{PollInterval: time.Millisecond, NegativePrompt: "blurry"}
	return NewService(backend, store, cfg), store
}

func TestGenerateVideoPollsUntilDone(t *testing.T) {
	backend := &scriptedBackend{pendingPolls: 3, final: doneOperation(1), video: []byte("mp4-bytes")}
	svc, store := newTestService(t, backend)
	publisher := &recordingPublisher{}
	svc.SetProgress(publisher)

	res, err := svc.GenerateVideo(context.Background(), VideoRequest{ImagePath: "/uploaded_images/cat.png", Prompt: "the cat walks", JobID: "job-1"})
	require.NoError(t, err)

	assert.Equal(t, 3, backend.refreshes)
	assert.Equal(t, "blurry", backend.negative)
	assert.NotEmpty(t, backend.submitted)
	assert.True(t, strings.HasPrefix(res.VideoPath, "/generated_videos/"))
	assert.True(t, strings.HasSuffix(res.VideoPath, ".mp4"))

	artifact, err := store.ResolvePath(res.VideoPath, storage.GeneratedVideo)
	require.NoError(t, err)
	data, err := store.ReadFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4-bytes"), data)

	require.Len(t, publisher.events, 4)
	assert.Equal(t, progressEventType, publisher.events[0].Type)
	assert.False(t, publisher.events[0].Done)
	last := publisher.events[3]
	assert.True(t, last.Done)
	assert.Equal(t, model.StatusCompleted, last.Status)
	assert.Equal(t, "job-1", last.JobID)
}

func TestGenerateVideoNoVideoProduced(t *testing.T) {
	cases := map[string]Operation{
		"no response": {Done: true},
		"no videos":   doneOperation(0),
	}
	for name, final := range cases {
		t.Run(name, func(t *testing.T) {
			backend := &scriptedBackend{pendingPolls: 1, final: final}
			svc, store := newTestService(t, backend)

			_, err := svc.GenerateVideo(context.Background(), VideoRequest{ImagePath: "cat.png", Prompt: "p"})
			assert.True(t, errors.Is(err, ErrNoVideoProduced))
			assert.Equal(t, 1, backend.refreshes)

			listed, err := store.List(storage.GeneratedVideo)
			require.NoError(t, err)
			assert.Empty(t, listed)
		})
	}
}

func TestGenerateVideoOperationError(t *testing.T) {
	backend := &scriptedBackend{final: Operation{Done: true, Error: map[string]any{"message": "quota"}}}
	svc, _ := newTestService(t, backend)

	_, err := svc.GenerateVideo(context.Background(), VideoRequest{ImagePath: "cat.png", Prompt: "p"})
	assert.True(t, errors.Is(err, ErrOperationFailed))
}

func TestGenerateVideoMissingSource(t *testing.T) {
	svc, _ := newTestService(t, &scriptedBackend{})
	_, err := svc.GenerateVideo(context.Background(), VideoRequest{ImagePath: "/generated_images/none.png", Prompt: "p"})
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestGenerateVideoHonoursCancellation(t *testing.T) {
	backend := &scriptedBackend{pendingPolls: 1 << 30}
	svc, _ := newTestService(t, backend)
	svc.config.PollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := svc.GenerateVideo(ctx, VideoRequest{ImagePath: "cat.png", Prompt: "p"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestGenerateVideoTimeout(t *testing.T) {
	backend := &scriptedBackend{pendingPolls: 1 << 30}
	svc, _ := newTestService(t, backend)
	svc.config.PollInterval = time.Hour
	svc.config.Timeout = 10 * time.Millisecond
	publisher := &recordingPublisher{}
	svc.SetProgress(publisher)

	_, err := svc.GenerateVideo(context.Background(), VideoRequest{ImagePath: "cat.png", Prompt: "p", JobID: "job-t"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	last := publisher.last(t)
	assert.True(t, last.Done)
	assert.Equal(t, model.StatusFailed, last.Status)
}

// memQueue - in-memory JobQueue
type memQueue struct {
	mu        sync.Mutex
	jobs      map[string]VideoJob
	cancelled map[string]bool
	ids       chan string
}

func newMemQueue() *memQueue {
	return &memQueue{jobs: map[string]VideoJob{}, cancelled: map[string]bool{}, ids: make(chan string, 16)}
}

func (q *memQueue) Enqueue(ctx context.Context, imagePath, prompt string) (*VideoJob, error) {
	job := newJob(imagePath, prompt)
	if err := q.Save(ctx, job); err != nil {
		return nil, err
	}
	q.ids <- job.JobID
	return job, nil
}

func (q *memQueue) Get(ctx context.Context, jobID string) (*VideoJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (q *memQueue) Save(ctx context.Context, job *VideoJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.JobID] = *job
	return nil
}

func (q *memQueue) Next(ctx context.Context) (string, error) {
	select {
	case id := <-q.ids:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *memQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(q.ids)), nil
}

func (q *memQueue) Cancel(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled[jobID] = true
	return nil
}

func (q *memQueue) IsJobCancelled(ctx context.Context, jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled[jobID]
}

func TestWorkerProcessJob(t *testing.T) {
	backend := &scriptedBackend{pendingPolls: 1, final: doneOperation(1), video: []byte("v")}
	svc, _ := newTestService(t, backend)
	queue := newMemQueue()
	worker := NewWorker(queue, svc)

	ok, err := queue.Enqueue(context.Background(), "/uploaded_images/cat.png", "walk")
	require.NoError(t, err)
	bad, err := queue.Enqueue(context.Background(), "/uploaded_images/missing.png", "walk")
	require.NoError(t, err)

	worker.processJob(context.Background(), <-queue.ids)
	worker.processJob(context.Background(), <-queue.ids)

	done, err := queue.Get(context.Background(), ok.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.True(t, strings.HasPrefix(done.VideoPath, "/generated_videos/"))

	failed, err := queue.Get(context.Background(), bad.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.NotEmpty(t, failed.ErrorMessage)
}

func TestWorkerSkipsJobCancelledBeforeStart(t *testing.T) {
	backend := &scriptedBackend{final: doneOperation(1), video: []byte("v")}
	svc, _ := newTestService(t, backend)
	queue := newMemQueue()
	worker := NewWorker(queue, svc)

	job, err := queue.Enqueue(context.Background(), "/uploaded_images/cat.png", "walk")
	require.NoError(t, err)
	require.NoError(t, queue.Cancel(context.Background(), job.JobID))

	worker.processJob(context.Background(), <-queue.ids)

	got, err := queue.Get(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUserCancelled, got.Status)
	assert.Nil(t, backend.submitted)
}

func TestWorkerCancelsRunningJob(t *testing.T) {
	backend := &scriptedBackend{pendingPolls: 1 << 30}
	svc, store := newTestService(t, backend)
	queue := newMemQueue()
	worker := NewWorker(queue, svc)
	worker.cancelCheck = time.Millisecond
	publisher := &recordingPublisher{}
	svc.SetProgress(publisher)

	job, err := queue.Enqueue(context.Background(), "/uploaded_images/cat.png", "walk")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = queue.Cancel(context.Background(), job.JobID)
	}()
	worker.processJob(context.Background(), <-queue.ids)

	got, err := queue.Get(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUserCancelled, got.Status)
	assert.Empty(t, got.VideoPath)

	last := publisher.last(t)
	assert.True(t, last.Done)
	assert.Equal(t, model.StatusUserCancelled, last.Status)
	assert.Equal(t, job.JobID, last.JobID)

	listed, err := store.List(storage.GeneratedVideo)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, &scriptedBackend{})
	worker := NewWorker(newMemQueue(), svc)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestHandlerEndpoints(t *testing.T) {
	backend := &scriptedBackend{final: doneOperation(1), video: []byte("v")}
	svc, _ := newTestService(t, backend)
	queue := newMemQueue()
	r := mux.NewRouter()
	NewHandler(svc, queue).RegisterRoutes(r)

	post := func(path string, form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := post("/generate-video", url.Values{"image_path": {"/uploaded_images/cat.png"}, "prompt": {"go"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"video_path":"/generated_videos/`)

	rec = post("/generate-video", url.Values{"image_path": {"/uploaded_images/nope.png"}, "prompt": {"go"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post("/generate-video/enqueue", url.Values{"image_path": {"/uploaded_images/cat.png"}, "prompt": {"go"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var enqueued map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enqueued))
	assert.Equal(t, model.StatusPending, enqueued["status"])

	statusRec := httptest.NewRecorder()
	r.ServeHTTP(statusRec, httptest.NewRequest(http.MethodGet, "/generate-video/status/"+enqueued["jobId"], nil))
	require.Equal(t, http.StatusOK, statusRec.Code)
	var job VideoJob
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &job))
	assert.Equal(t, enqueued["jobId"], job.JobID)

	missingRec := httptest.NewRecorder()
	r.ServeHTTP(missingRec, httptest.NewRequest(http.MethodGet, "/generate-video/status/unknown", nil))
	assert.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestHandlerCancelJob(t *testing.T) {
	svc, _ := newTestService(t, &scriptedBackend{})
	queue := newMemQueue()
	r := mux.NewRouter()
	NewHandler(svc, queue).RegisterRoutes(r)

	cancelJob := func(jobID string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-video/cancel/"+jobID, nil))
		return rec
	}

	pending, err := queue.Enqueue(context.Background(), "/uploaded_images/cat.png", "walk")
	require.NoError(t, err)

	rec := cancelJob(pending.JobID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.StatusUserCancelled, body["status"])
	assert.True(t, queue.IsJobCancelled(context.Background(), pending.JobID))

	// already finished
	assert.Equal(t, http.StatusConflict, cancelJob(pending.JobID).Code)

	running := newJob("/uploaded_images/cat.png", "walk")
	running.Status = model.StatusProcessing
	require.NoError(t, queue.Save(context.Background(), running))
	rec = cancelJob(running.JobID)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.StatusProcessing, body["status"])

	assert.Equal(t, http.StatusNotFound, cancelJob("unknown").Code)
}

func TestHandlerWithoutQueue(t *testing.T) {
	svc, _ := newTestService(t, &scriptedBackend{})
	r := mux.NewRouter()
	NewHandler(svc, nil).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/generate-video/status/x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-video/cancel/x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
