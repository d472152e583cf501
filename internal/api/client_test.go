package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/dronesim/pkg/core"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000/", "secret123")
	require.NotNil(t, c)
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, "secret123", c.apiKey)
	assert.NotNil(t, c.httpClient)
}

func TestHealthcheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"server error", http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/healthcheck", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := New(server.URL, "").Healthcheck(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	assert.Error(t, New("http://127.0.0.1:1", "").Healthcheck(context.Background()))
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestUpload_Success(t *testing.T) {
	received := map[string]string{}
	var content []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/missions/add", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(10<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for k, v := range r.MultipartForm.Value {
			received[k] = v[0]
		}
		file, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer file.Close()
			content, _ = io.ReadAll(file)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeTestFile(t, "survey_20260301_120000.json.gz", "test content")
	err := New(server.URL, "mysecret").Upload(context.Background(), path, core.UploadMetadata{
		MissionName:     "Survey",
		Author:          "ops",
		Tag:             "training",
		MissionDuration: 93.25,
		CommandCount:    7,
		DistanceMeters:  412.34,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"secret":          "mysecret",
		"filename":        "survey_20260301_120000.json.gz",
		"missionName":     "Survey",
		"author":          "ops",
		"tag":             "training",
		"missionDuration": "93.250",
		"commandCount":    "7",
		"distanceMeters":  "412.3",
	}, received)
	assert.Equal(t, "test content", string(content))
}

func TestUpload_FileNotFound(t *testing.T) {
	err := New("http://localhost:5000", "secret").Upload(context.Background(), "/nonexistent/file.json.gz", core.UploadMetadata{})
	assert.Error(t, err)
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	path := writeTestFile(t, "test.json.gz", "content")
	err := New(server.URL, "wrong-secret").Upload(context.Background(), path, core.UploadMetadata{})
	assert.EqualError(t, err, "upload returned status 403")
}
