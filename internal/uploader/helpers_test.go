package uploader

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mirrorkit/drive-go/internal/creds"
	"github.com/mirrorkit/drive-go/internal/drive"
)

// testFlag is a settable CancelFlag.
type testFlag struct {
	v atomic.Bool
}

func (f *testFlag) IsCancelled() bool { return f.v.Load() }

func (f *testFlag) Cancel() { f.v.Store(true) }

// tokenSrc is a creds.Source returning a fixed token string.
type tokenSrc string

func (s tokenSrc) Token() (string, error) { return string(s), nil }

// newTestPool builds a rotating pool of n named identities ("sa-0"...).
func newTestPool(t *testing.T, n int) *creds.Pool {
	t.Helper()

	sources := make([]creds.Source, n)
	for i := range sources {
		sources[i] = tokenSrc(fmt.Sprintf("sa-%d", i))
	}

	pool, err := creds.NewPool(sources, slog.Default())
	require.NoError(t, err)

	return pool
}

// fakeResponse overrides the fake server's default handling of one request.
type fakeResponse struct {
	status int
	body   string
}

// quotaBody is the canonical per-identity quota error payload.
const quotaBody = `{"error":{"errors":[{"reason":"userRateLimitExceeded","message":"User rate limit exceeded"}],"code":403,"message":"User rate limit exceeded"}}`

// fakeDrive is an httptest-backed stand-in for the Drive v3 API: metadata
// creates, resumable sessions, chunk PUTs, permission grants, and deletes.
// Failure injection is keyed by the global chunk-PUT index.
type fakeDrive struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	nextID        int
	sessionMeta   map[int]sessionState
	sessionTokens []string
	chunkRanges   []string
	chunkPuts     int
	folders       map[string]string
	deleted       []string
	permissions   []string
	finalized     map[string][]byte

	// chunkStatus maps a global chunk-PUT index to an injected response.
	// Injected PUTs consume the index but store no bytes.
	chunkStatus map[int]fakeResponse

	// onChunk runs before each chunk PUT is handled. Used to flip the
	// cancellation flag mid-transfer.
	onChunk func(putIndex int)
}

type sessionState struct {
	name  string
	total int64
	data  []byte
}

func newFakeDrive(t *testing.T) *fakeDrive {
	t.Helper()

	f := &fakeDrive{
		t:           t,
		sessionMeta: map[int]sessionState{},
		folders:     map[string]string{},
		finalized:   map[string][]byte{},
		chunkStatus: map[int]fakeResponse{},
	}

	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeDrive) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/files" && r.URL.Query().Get("uploadType") == "resumable":
		f.handleSessionCreate(w, r)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/sessions/"):
		f.handleChunk(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/files":
		f.handleMetadataCreate(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/permissions"):
		f.handlePermission(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/files/"):
		f.handleGet(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/files/"):
		f.handleDelete(w, r)
	default:
		f.t.Errorf("unexpected request: %s %s", r.Method, r.URL)
		w.WriteHeader(http.StatusTeapot)
	}
}

func (f *fakeDrive) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var meta struct {
		Name string `json:"name"`
	}

	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&meta))

	total, err := strconv.ParseInt(r.Header.Get("X-Upload-Content-Length"), 10, 64)
	require.NoError(f.t, err)

	f.mu.Lock()
	id := len(f.sessionMeta)
	f.sessionMeta[id] = sessionState{name: meta.Name, total: total}
	f.sessionTokens = append(f.sessionTokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	f.mu.Unlock()

	w.Header().Set("Location", fmt.Sprintf("%s/sessions/%d", f.srv.URL, id))
	w.WriteHeader(http.StatusOK)
}

func (f *fakeDrive) handleChunk(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/sessions/"))
	require.NoError(f.t, err)

	f.mu.Lock()
	idx := f.chunkPuts
	f.chunkPuts++
	f.chunkRanges = append(f.chunkRanges, r.Header.Get("Content-Range"))
	injected, hasInjected := f.chunkStatus[idx]
	hook := f.onChunk
	f.mu.Unlock()

	if hook != nil {
		hook(idx)
	}

	if hasInjected {
		w.WriteHeader(injected.status)
		fmt.Fprint(w, injected.body)

		return
	}

	body, err := io.ReadAll(r.Body)
	require.NoError(f.t, err)

	f.mu.Lock()
	state := f.sessionMeta[id]
	state.data = append(state.data, body...)
	f.sessionMeta[id] = state
	done := int64(len(state.data)) >= state.total
	var fileID string
	if done {
		f.nextID++
		fileID = fmt.Sprintf("file-%d", f.nextID)
		f.finalized[fileID] = state.data
	}
	f.mu.Unlock()

	if !done {
		w.WriteHeader(308)

		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"id":%q,"name":%q,"mimeType":"application/octet-stream","size":"%d"}`,
		fileID, state.name, state.total)
}

func (f *fakeDrive) handleMetadataCreate(w http.ResponseWriter, r *http.Request) {
	var meta struct {
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
	}

	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&meta))

	f.mu.Lock()
	f.nextID++

	var id string
	if meta.MimeType == drive.FolderMimeType {
		id = fmt.Sprintf("folder-%d", f.nextID)
		f.folders[id] = meta.Name
	} else {
		id = fmt.Sprintf("file-%d", f.nextID)
		f.finalized[id] = nil
	}
	f.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"id":%q,"name":%q,"mimeType":%q}`, id, meta.Name, meta.MimeType)
}

func (f *fakeDrive) handlePermission(w http.ResponseWriter, r *http.Request) {
	fileID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/files/"), "/permissions")

	f.mu.Lock()
	f.permissions = append(f.permissions, fileID)
	f.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"id":"perm"}`)
}

func (f *fakeDrive) handleGet(w http.ResponseWriter, r *http.Request) {
	fileID := strings.TrimPrefix(r.URL.Path, "/files/")

	f.mu.Lock()
	data, ok := f.finalized[fileID]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"not found"}}`)

		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"id":%q,"name":"f","mimeType":"application/octet-stream","size":"%d"}`, fileID, len(data))
}

func (f *fakeDrive) handleDelete(w http.ResponseWriter, r *http.Request) {
	fileID := strings.TrimPrefix(r.URL.Path, "/files/")

	f.mu.Lock()
	f.deleted = append(f.deleted, fileID)
	f.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// finalizedContent returns the assembled bytes of the single finalized
// upload, failing the test when there is not exactly one.
func (f *fakeDrive) finalizedContent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	require.Len(f.t, f.finalized, 1)

	for _, data := range f.finalized {
		return data
	}

	return nil
}

// newTestClient builds a drive client pointed at the fake server with the
// pool as its token source.
func (f *fakeDrive) newTestClient(pool *creds.Pool) *drive.Client {
	return drive.NewClient(f.srv.URL, f.srv.URL, http.DefaultClient, pool, slog.Default())
}
