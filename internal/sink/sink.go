package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-clientraw/internal/common"
	"github.com/i474232898/weather-clientraw/internal/fsutil"
)

var ErrWriteFailed = errors.New("sink write failed")

// Sink receives finished records.
type Sink interface {
	Name() string
	Write(ctx context.Context, data []byte) error
}

// FileSink replaces a file atomically with every record.
type FileSink struct {
	path  string
	perm  os.FileMode
	locks *fsutil.PathLocks
}

// NewFileSink writes to path. Writers sharing locks are serialized per path.
func NewFileSink(path string, locks *fsutil.PathLocks) *FileSink {
	if locks == nil {
		locks = &fsutil.PathLocks{}
	}
	return &FileSink{path: path, perm: 0o644, locks: locks}
}

func (s *FileSink) Name() string { return "file:" + s.path }

func (s *FileSink) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.Lock(s.path)
	defer unlock()

	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	if err := fsutil.WriteAtomic(s.path, buf, s.perm); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// RemoteSink mirrors records to a web server as a form POST.
type RemoteSink struct {
	url     string
	field   string
	httpCfg common.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewRemoteSink posts records to target under the given form field.
func NewRemoteSink(client *http.Client, target, field string) *RemoteSink {
	if field == "" {
		field = "clientraw"
	}
	return &RemoteSink{
		url:   target,
		field: field,
		httpCfg: common.HTTPClientConfig{
			Client:  client,
			Backoff: common.DefaultBackoff(),
		},
		circuit: common.NewBreaker("remote:" + target),
	}
}

func (s *RemoteSink) Name() string { return "remote:" + s.url }

func (s *RemoteSink) Write(ctx context.Context, data []byte) error {
	body := url.Values{s.field: {strings.TrimSpace(string(data))}}.Encode()

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewBufferString(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}

	resp, err := common.DoWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return fmt.Errorf("%w: post %s: %v", ErrWriteFailed, s.url, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}
