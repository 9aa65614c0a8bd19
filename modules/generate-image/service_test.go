package generateimage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-studio-server/modules/common/model"
	"media-studio-server/modules/common/storage"
)

type fakeBackend struct {
	mu        sync.Mutex
	data      []byte
	err       error
	prompts   []string
	reference []*ReferenceImage
}

func (f *fakeBackend) GenerateImage(ctx context.Context, prompt string, reference *ReferenceImage) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.reference = append(f.reference, reference)
	return f.data, f.err
}

type fakeClassifier struct {
	intent model.Intent
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, prompt string) model.Intent {
	f.calls++
	return f.intent
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestService(t *testing.T, backend *fakeBackend, classifier *fakeClassifier) (*Service, *storage.Store) {
	t.Helper()
	store := storage.NewStoreAt(t.TempDir())
	require.NoError(t, store.EnsureDirs())
	return NewService(backend, classifier, store), store
}

func TestGenerateNew(t *testing.T) {
	backend := &fakeBackend{data: pngBytes(t)}
	classifier := &fakeClassifier{intent: model.IntentEdit}
	svc, store := newTestService(t, backend, classifier)

	res, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "a red fox", Mode: model.ModeNew})
	require.NoError(t, err)

	assert.Equal(t, model.IntentNew, res.RequestType)
	assert.True(t, strings.HasPrefix(res.ImagePath, "/generated_images/"))
	assert.True(t, strings.HasSuffix(res.ImagePath, ".png"))
	assert.Equal(t, 0, classifier.calls)
	assert.Nil(t, backend.reference[0])

	_, err = store.ResolvePath(res.ImagePath, storage.GeneratedImage)
	assert.NoError(t, err)
}

func TestGenerateAutoUsesClassifier(t *testing.T) {
	backend := &fakeBackend{data: pngBytes(t)}
	classifier := &fakeClassifier{intent: model.IntentNew}
	svc, _ := newTestService(t, backend, classifier)

	res, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "a boat", Mode: model.ModeAuto})
	require.NoError(t, err)
	assert.Equal(t, 1, classifier.calls)
	assert.Equal(t, model.IntentNew, res.RequestType)
}

func TestGenerateEditAttachesReference(t *testing.T) {
	backend := &fakeBackend{data: pngBytes(t)}
	classifier := &fakeClassifier{intent: model.IntentEdit}
	svc, store := newTestService(t, backend, classifier)

	src := pngBytes(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(storage.Uploaded), "src.png"), src, 0o644))

	res, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "make it blue", CurrentImage: "/uploaded_images/src.png"})
	require.NoError(t, err)

	assert.Equal(t, model.IntentEdit, res.RequestType)
	require.NotNil(t, backend.reference[0])
	assert.Equal(t, src, backend.reference[0].Data)
	assert.Equal(t, "image/png", backend.reference[0].MIMEType)
}

func TestGenerateEditDowngradesWhenReferenceMissing(t *testing.T) {
	for _, current := range []string{"", "/generated_images/missing.png", "/etc/passwd"} {
		t.Run(current, func(t *testing.T) {
			backend := &fakeBackend{data: pngBytes(t)}
			svc, _ := newTestService(t, backend, &fakeClassifier{})

			res, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "edit it", Mode: model.ModeEdit, CurrentImage: current})
			require.NoError(t, err)
			assert.Equal(t, model.IntentNew, res.RequestType)
			assert.Nil(t, backend.reference[0])
		})
	}
}

func TestGenerateNoImageProduced(t *testing.T) {
	for name, backend := range map[string]*fakeBackend{
		"sentinel": {err: ErrNoImageProduced},
		"empty":    {},
	} {
		t.Run(name, func(t *testing.T) {
			svc, store := newTestService(t, backend, &fakeClassifier{intent: model.IntentNew})
			_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "x", Mode: model.ModeNew})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNoImageProduced))

			listed, err := store.List(storage.GeneratedImage)
			require.NoError(t, err)
			assert.Empty(t, listed)
		})
	}
}

func TestGenerateRequiresPrompt(t *testing.T) {
	svc, _ := newTestService(t, &fakeBackend{}, &fakeClassifier{})
	_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "  "})
	assert.Error(t, err)
}

func TestConcurrentGenerateProducesDistinctArtifacts(t *testing.T) {
	backend := &fakeBackend{data: pngBytes(t)}
	svc, _ := newTestService(t, backend, &fakeClassifier{intent: model.IntentNew})

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		paths = map[string]bool{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "prompt " + string(rune('a'+i)), Mode: model.ModeNew})
			if err != nil {
				t.Errorf("Generate: %v", err)
				return
			}
			mu.Lock()
			paths[res.ImagePath] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	assert.Len(t, paths, 10)
}

func TestHandlerGenerateImage(t *testing.T) {
	backend := &fakeBackend{data: pngBytes(t)}
	svc, _ := newTestService(t, backend, &fakeClassifier{intent: model.IntentNew})
	r := mux.NewRouter()
	NewHandler(svc).RegisterRoutes(r)

	form := url.Values{"prompt": {"a lighthouse"}, "mode": {"new"}}
	req := httptest.NewRequest(http.MethodPost, "/generate-image", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "new", body["request_type"])
	assert.True(t, strings.HasPrefix(body["image_path"], "/generated_images/"))
}

func TestHandlerRejectsUnknownMode(t *testing.T) {
	svc, _ := newTestService(t, &fakeBackend{}, &fakeClassifier{})
	r := mux.NewRouter()
	NewHandler(svc).RegisterRoutes(r)

	form := url.Values{"prompt": {"x"}, "mode": {"remix"}}
	req := httptest.NewRequest(http.MethodPost, "/generate-image", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
