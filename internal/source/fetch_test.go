package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentic-research/skilltree/api"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(scenarioJSON))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second})
	root, err := f.Fetch(context.Background(), srv.URL+"/BaseSkillTree.json")
	require.NoError(t, err)
	assert.Equal(t, "Root", root.Name)
}

func TestHTTPFetcher_YAMLContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte("name: Root\nchildren:\n  - name: Leaf\n"))
	}))
	defer srv.Close()

	root, err := NewHTTPFetcher(HTTPOptions{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Leaf", root.Children[0].Name)
}

func TestHTTPFetcher_Selector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tree": ` + scenarioJSON + `}`))
	}))
	defer srv.Close()

	root, err := NewHTTPFetcher(HTTPOptions{Selector: "$.tree"}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Root", root.Name)
}

func TestHTTPFetcher_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(HTTPOptions{}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "http error: status 404")
}

func TestHTTPFetcher_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(HTTPOptions{}).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestHTTPFetcher_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(scenarioJSON))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(HTTPOptions{MaxBytes: 32}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.ErrorIs(t, err, ErrFetch)
	assert.NotErrorIs(t, err, ErrMalformed)

	root, err := NewHTTPFetcher(HTTPOptions{MaxBytes: int64(len(scenarioJSON))}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err, "a body of exactly the limit is accepted")
	assert.Equal(t, "Root", root.Name)
}

func TestHTTPFetcher_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{BreakerFailures: 2, BreakerTimeout: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.ErrorIs(t, err, ErrFetch)
	}

	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the server")
}

func TestHTTPFetcher_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(scenarioJSON))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPFetcher(HTTPOptions{}).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFileFetcher(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "trees/base.json", []byte(scenarioJSON), 0o644))
	require.NoError(t, util.WriteFile(fs, "trees/base.yaml", []byte("name: Root\n"), 0o644))

	f := &FileFetcher{FS: fs}

	root, err := f.Fetch(context.Background(), "trees/base.json")
	require.NoError(t, err)
	assert.Len(t, root.Children, 2)

	root, err = f.Fetch(context.Background(), "trees/base.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Root", root.Name)

	_, err = f.Fetch(context.Background(), "trees/missing.json")
	assert.ErrorIs(t, err, ErrFetch)

	small := &FileFetcher{FS: fs, MaxBytes: 8}
	_, err = small.Fetch(context.Background(), "trees/base.json")
	assert.ErrorIs(t, err, ErrTooLarge)
}

type stubFetcher struct {
	calls []string
}

func (s *stubFetcher) Fetch(_ context.Context, location string) (*api.RawNode, error) {
	s.calls = append(s.calls, location)
	return &api.RawNode{Name: "Remote"}, nil
}

func TestRouter(t *testing.T) {
	mem := memfs.New()
	require.NoError(t, util.WriteFile(mem, "tree.json", []byte(scenarioJSON), 0o644))

	var dirs []string
	stub := &stubFetcher{}
	r := &Router{
		HTTP: stub,
		Local: func(dir string) billy.Filesystem {
			dirs = append(dirs, dir)
			return mem
		},
	}

	root, err := r.Fetch(context.Background(), "https://minecraft.example/BaseSkillTree.json")
	require.NoError(t, err)
	assert.Equal(t, "Remote", root.Name)
	assert.Equal(t, []string{"https://minecraft.example/BaseSkillTree.json"}, stub.calls)

	root, err = r.Fetch(context.Background(), "file:///srv/data/tree.json")
	require.NoError(t, err)
	assert.Equal(t, "Root", root.Name)
	require.Len(t, dirs, 1)
	assert.Equal(t, filepath.Dir(filepath.FromSlash("/srv/data/tree.json")), dirs[0])
}

func TestRouter_OSFilesystem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.json")
	require.NoError(t, os.WriteFile(path, []byte(scenarioJSON), 0o644))

	root, err := (&Router{}).Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Root", root.Name)
}

func TestRouter_NoHTTP(t *testing.T) {
	_, err := (&Router{}).Fetch(context.Background(), "http://example.com/tree.json")
	assert.ErrorIs(t, err, ErrFetch)
}
