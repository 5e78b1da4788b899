package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolder_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("supportsAllDrives"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), FolderMimeType)
		assert.Contains(t, string(body), `"parents":["parent-1"]`)

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"id":"folder-1","name":"photos","mimeType":%q}`, FolderMimeType)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	folder, err := client.CreateFolder(context.Background(), "photos", "parent-1")
	require.NoError(t, err)

	assert.Equal(t, "folder-1", folder.ID)
	assert.True(t, folder.IsFolder())
}

func TestCreateFolder_RootParentOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.NotContains(t, string(body), "parents")

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"id":"root-folder","name":"top","mimeType":%q}`, FolderMimeType)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.CreateFolder(context.Background(), "top", "")
	require.NoError(t, err)
}

func TestCreateEmptyFile_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"name":"empty.txt"`)
		assert.Contains(t, string(body), `"mimeType":"text/plain"`)

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"id":"empty-1","name":"empty.txt","mimeType":"text/plain"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	file, err := client.CreateEmptyFile(context.Background(), FileMeta{
		Name:     "empty.txt",
		MimeType: "text/plain",
		Parents:  []string{"p"},
	})
	require.NoError(t, err)

	assert.Equal(t, "empty-1", file.ID)
	assert.Equal(t, int64(0), file.Size)
}

func TestGetFile_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/files/file-9", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"id":"file-9","name":"a.bin","mimeType":"application/octet-stream","size":"42","parents":["p1","p2"]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	file, err := client.GetFile(context.Background(), "file-9")
	require.NoError(t, err)

	assert.Equal(t, "a.bin", file.Name)
	assert.Equal(t, int64(42), file.Size)
	assert.Equal(t, "p1", file.ParentID, "first parent wins")
	assert.False(t, file.IsFolder())
}

func TestDeleteFile_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/files/gone", r.URL.Path)

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.DeleteFile(context.Background(), "gone")
	require.NoError(t, err)
}

func TestDeleteFile_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"File not found"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.DeleteFile(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGrantReadAccess_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/files/file-1/permissions", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"role":"reader","type":"anyone"}`, string(body))

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"id":"perm-1"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.GrantReadAccess(context.Background(), "file-1")
	require.NoError(t, err)
}

func TestLinks(t *testing.T) {
	assert.Equal(t, "https://drive.google.com/drive/folders/abc", FolderLink("abc"))
	assert.Equal(t, "https://drive.google.com/uc?id=xyz&export=download", FileLink("xyz"))
}
