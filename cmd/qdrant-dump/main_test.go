package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chapsvision-dev/qdrant-dump/internal/config"
	"github.com/Chapsvision-dev/qdrant-dump/internal/dump"
	"github.com/Chapsvision-dev/qdrant-dump/internal/provider"
)

/* ----------------------------- test harness ----------------------------- */

type exitPanic struct{ code int }

func patchExit(t *testing.T) func() {
	t.Helper()
	prev := exit
	exit = func(code int) { panic(exitPanic{code}) }
	return func() { exit = prev }
}

func mustExitCode(t *testing.T, fn func()) (code int) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected os.Exit interception, got no panic")
		}
		if ep, ok := r.(exitPanic); ok {
			code = ep.code
			return
		}
		t.Fatalf("unexpected panic: %#v", r)
	}()
	fn()
	return 0
}

func withArgs(t *testing.T, args []string) func() {
	t.Helper()
	prev := os.Args
	os.Args = append([]string{prev[0]}, args...)
	return func() { os.Args = prev }
}

func captureStdout(t *testing.T) func() string {
	t.Helper()
	old := os.Stdout
	var buf bytes.Buffer
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan struct{})
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	return func() string {
		_ = w.Close()
		<-done
		os.Stdout = old
		return buf.String()
	}
}

func resetSeams() {
	loadConfig = config.Load
	newAPI = newQdrantClient
	newProvider = provider.New
	prepareDir = dump.PrepareDir
	runDump = dump.Run
	now = time.Now
}

// cleanEnv blanks every variable the CLI reads so the host cannot leak in.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"QDRANT_URL", "QDRANT_API_KEY", "QDRANT_API_KEY_FILE", "QDRANT_COLLECTION",
		"BACKUP_OUT", "BACKUP_TIMESTAMP", "BACKUP_PROVIDER", "BACKUP_REMOTE_PREFIX",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

// fakeQdrant serves the three snapshot endpoints from memory.
type fakeQdrant struct {
	mu          sync.Mutex
	collections []string
	listStatus  int
	failCreate  string
	apiKeys     []string
	creates     []string
	downloads   []string
}

func (f *fakeQdrant) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections", func(w http.ResponseWriter, r *http.Request) {
		f.record(r, nil)
		if f.listStatus != 0 {
			http.Error(w, `{"status":{"error":"nope"}}`, f.listStatus)
			return
		}
		cols := make([]map[string]string, 0, len(f.collections))
		for _, c := range f.collections {
			cols = append(cols, map[string]string{"name": c})
		}
		writeJSON(w, map[string]any{"result": map[string]any{"collections": cols}, "status": "ok"})
	})
	mux.HandleFunc("POST /collections/{name}/snapshots", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		f.record(r, &f.creates)
		if name == f.failCreate {
			http.Error(w, `{"status":{"error":"boom"}}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{"name": name + "-snap", "size": 3}, "status": "ok"})
	})
	mux.HandleFunc("GET /collections/{name}/snapshots/{snap}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r, &f.downloads)
		_, _ = fmt.Fprintf(w, "data:%s/%s", r.PathValue("name"), r.PathValue("snap"))
	})
	return mux
}

func (f *fakeQdrant) record(r *http.Request, calls *[]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
	if calls != nil {
		*calls = append(*calls, r.PathValue("name"))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func startQdrant(t *testing.T, f *fakeQdrant) string {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

/* --------------------------------- tests -------------------------------- */

func TestRun_AllCollections(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	f := &fakeQdrant{collections: []string{"docs", "images"}}
	url := startQdrant(t, f)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--url", url, "--out", out}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	assert.Equal(t, "data:docs/docs-snap", readFile(t, filepath.Join(out, "docs_docs-snap")))
	assert.Equal(t, "data:images/images-snap", readFile(t, filepath.Join(out, "images_images-snap")))
	assert.Equal(t, []string{"docs", "images"}, f.creates)
	assert.Equal(t, []string{"docs", "images"}, f.downloads)

	assert.Contains(t, stdout.String(), "Found 2 collection(s).")
	assert.Contains(t, stdout.String(), "[1/2] docs")
	assert.Contains(t, stdout.String(), "[2/2] images")
	assert.Contains(t, stdout.String(), "Backup complete (2 collection(s))")
}

func TestRun_SingleCollectionSkipsListing(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	f := &fakeQdrant{listStatus: http.StatusInternalServerError}
	url := startQdrant(t, f)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-u", url, "-c", "docs", "-o", out}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	assert.Equal(t, "data:docs/docs-snap", readFile(t, filepath.Join(out, "docs_docs-snap")))
	assert.Len(t, f.apiKeys, 2, "create and download only")
}

func TestRun_TimestampSubdirectory(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) }
	url := startQdrant(t, &fakeQdrant{})
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--url", url, "--collection", "docs", "--out", out, "--timestamp"}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	want := filepath.Join(out, "20240102_030405", "docs_docs-snap")
	assert.Equal(t, "data:docs/docs-snap", readFile(t, want))
	assert.Contains(t, stdout.String(), filepath.Join(out, "20240102_030405"))
}

func TestRun_APIKeyFromEnvIsSent(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	f := &fakeQdrant{}
	url := startQdrant(t, f)
	t.Setenv("QDRANT_URL", url)
	t.Setenv("QDRANT_API_KEY", "s3cret")
	t.Setenv("QDRANT_COLLECTION", "docs")
	t.Setenv("BACKUP_OUT", t.TempDir())

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{}, &stdout, &stderr), "stderr: %s", stderr.String())
	require.NotEmpty(t, f.apiKeys)
	for _, k := range f.apiKeys {
		assert.Equal(t, "s3cret", k)
	}
}

func TestRun_ListFailureMakesNoSnapshotCalls(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	f := &fakeQdrant{listStatus: http.StatusNotFound}
	url := startQdrant(t, f)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--url", url, "--out", t.TempDir()}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Empty(t, f.creates)
	assert.Empty(t, f.downloads)
	assert.Contains(t, stderr.String(), "Error:")
	assert.Contains(t, stderr.String(), "404")
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	f := &fakeQdrant{collections: []string{"c1", "c2", "c3", "c4"}, failCreate: "c3"}
	url := startQdrant(t, f)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--url", url, "--out", out}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Equal(t, []string{"c1", "c2", "c3"}, f.creates)
	assert.Equal(t, []string{"c1", "c2"}, f.downloads)
	assert.FileExists(t, filepath.Join(out, "c1_c1-snap"))
	assert.FileExists(t, filepath.Join(out, "c2_c2-snap"))
	assert.NoFileExists(t, filepath.Join(out, "c4_c4-snap"))
	assert.NotContains(t, stdout.String(), "Backup complete")
}

func TestRun_WriteFailureAfterDownload(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	f := &fakeQdrant{}
	url := startQdrant(t, f)
	out := t.TempDir()
	// A directory at the target path makes the write fail, even as root.
	require.NoError(t, os.Mkdir(filepath.Join(out, "docs_docs-snap"), 0o755))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--url", url, "--collection", "docs", "--out", out}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Equal(t, []string{"docs"}, f.downloads, "download succeeded before the write")
	assert.Contains(t, stderr.String(), "write")
	assert.NotContains(t, stdout.String(), "saved")
	assert.NotContains(t, stdout.String(), "Backup complete")
}

func TestRun_ConfigErrorExit1(t *testing.T) {
	resetSeams()
	cleanEnv(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--collection", "docs"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "qdrant url is required")
}

func TestRun_UsageErrorsExit2(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	cases := map[string][]string{
		"unknown flag":   {"--bogus"},
		"missing value":  {"--url"},
		"positional arg": {"--url", "http://localhost:6333", "extra"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), args, &stdout, &stderr)
			assert.Equal(t, 2, code)
			assert.Contains(t, stderr.String(), "--help")
		})
	}
}

func TestRun_PrepareDirFailureStopsBeforeNetwork(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	f := &fakeQdrant{collections: []string{"docs"}}
	url := startQdrant(t, f)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--url", url, "--out", filepath.Join(blocker, "sub")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Empty(t, f.apiKeys)
}

func TestRun_PassesProviderAndPrefixToDump(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) }

	var gotName string
	newProvider = func(name string, cfg any) (provider.Provider, error) {
		gotName = name
		return nil, nil
	}
	var gotTarget string
	var gotOpts dump.Options
	runDump = func(_ context.Context, _ dump.API, target, _ string, opts dump.Options) ([]dump.Result, error) {
		gotTarget = target
		gotOpts = opts
		return nil, nil
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--url", "http://localhost:6333", "--out", t.TempDir(), "-t", "--provider", "none", "--remote-prefix", "nightly",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	assert.Equal(t, "", gotName)
	assert.Equal(t, config.DefaultCollection, gotTarget)
	assert.Nil(t, gotOpts.Uploader)
	assert.Equal(t, "nightly/20240102_030405", gotOpts.RemotePrefix)
	assert.NotNil(t, gotOpts.Progress)
}

func TestMain_Version(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	defer patchExit(t)()
	defer withArgs(t, []string{"--version"})()

	restoreOut := captureStdout(t)
	code := mustExitCode(t, func() { main() })
	out := restoreOut()

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "qdrant-dump")
}

func TestMain_HelpShowsUsage(t *testing.T) {
	resetSeams()
	cleanEnv(t)
	defer patchExit(t)()
	defer withArgs(t, []string{"--help"})()

	restoreOut := captureStdout(t)
	code := mustExitCode(t, func() { main() })
	out := restoreOut()

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "--api-key-file")
}

func TestWithSignals_CancelsOnInterrupt(t *testing.T) {
	ctx := withSignals(context.Background())
	t.Cleanup(func() { signal.Reset(os.Interrupt) })

	// Short delay so signal.Notify is registered first.
	time.AfterFunc(100*time.Millisecond, func() {
		p, _ := os.FindProcess(os.Getpid())
		_ = p.Signal(os.Interrupt)
	})

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after os.Interrupt")
	}
}
