package sink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-clientraw/internal/common"
)

func TestFileSinkWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clientraw.txt")
	s := NewFileSink(path, nil)

	require.NoError(t, s.Write(context.Background(), []byte("12345 1 2 !!C10.37S120!!")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "12345 1 2 !!C10.37S120!!\n", string(got))
	assert.Equal(t, "file:"+path, s.Name())
}

func TestFileSinkWriteFailure(t *testing.T) {
	s := NewFileSink(filepath.Join(t.TempDir(), "nope", "clientraw.txt"), nil)
	err := s.Write(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrWriteFailed)
}

func TestRemoteSinkPostsForm(t *testing.T) {
	var (
		gotField string
		gotType  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotField = r.PostForm.Get("clientraw")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewRemoteSink(srv.Client(), srv.URL, "")
	require.NoError(t, s.Write(context.Background(), []byte("12345 1 2 !!C10.37S120!!\n")))

	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
	assert.Equal(t, "12345 1 2 !!C10.37S120!!", gotField)
}

func TestRemoteSinkReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewRemoteSink(srv.Client(), srv.URL, "clientraw")
	s.httpCfg.Backoff = common.BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond}

	err := s.Write(context.Background(), []byte("12345"))
	assert.ErrorIs(t, err, ErrWriteFailed)
}
