package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIJob_Cancel(t *testing.T) {
	job := newCLIJob(slog.Default(), true)

	assert.False(t, job.IsCancelled())

	job.Cancel()
	assert.True(t, job.IsCancelled())
}

func TestCLIJob_RecordsError(t *testing.T) {
	job := newCLIJob(slog.Default(), true)

	job.OnUploadError("quota exhausted")

	assert.True(t, job.errored)
	assert.Equal(t, "quota exhausted", job.errMsg)
	assert.False(t, job.complete)
}

func TestCLIJob_RecordsCompletion(t *testing.T) {
	job := newCLIJob(slog.Default(), true)

	job.OnUploadComplete("https://example.com/link", 3, 2, "Folder", "folder-1")

	assert.True(t, job.complete)
	assert.Equal(t, "https://example.com/link", job.link)
	assert.Equal(t, 3, job.files)
	assert.Equal(t, 2, job.folders)
	assert.Equal(t, "Folder", job.kind)
	assert.Equal(t, "folder-1", job.objectID)
}
