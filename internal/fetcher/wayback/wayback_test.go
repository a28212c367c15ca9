package wayback

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/research-fetcher/internal/research"
)

type stubGetter struct {
	body string
	err  error
	url  string
}

func (s *stubGetter) Get(_ context.Context, rawURL string, _ http.Header) (research.HTTPResponse, error) {
	s.url = rawURL
	if s.err != nil {
		return research.HTTPResponse{}, s.err
	}
	return research.HTTPResponse{StatusCode: http.StatusOK, Body: []byte(s.body)}, nil
}

type stubReader struct {
	page  research.Page
	err   error
	calls []string
}

func (s *stubReader) Fetch(_ context.Context, rawURL string) (research.Page, error) {
	s.calls = append(s.calls, rawURL)
	if s.err != nil {
		return research.Page{}, s.err
	}
	return s.page, nil
}

const snapshotJSON = `{
  "url": "example.com/a",
  "archived_snapshots": {
    "closest": {
      "status": "200",
      "available": true,
      "url": "http://web.archive.org/web/20240101000000/https://example.com/a",
      "timestamp": "20240101000000"
    }
  }
}`

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "", &stubReader{})
	assert.Error(t, err)
	_, err = New(&stubGetter{}, "", nil)
	assert.Error(t, err)

	client, err := New(&stubGetter{}, "  ", &stubReader{})
	require.NoError(t, err)
	assert.Equal(t, DefaultAvailabilityURL, client.availabilityURL)
	assert.Equal(t, research.MethodArchive, client.Method())
}

func TestFetchReadsClosestSnapshot(t *testing.T) {
	t.Parallel()

	getter := &stubGetter{body: snapshotJSON}
	reader := &stubReader{page: research.Page{Content: "# Archived\nbody", Title: "Archived", Method: research.MethodReader}}
	client, err := New(getter, "https://archive.test/wayback/available", reader)
	require.NoError(t, err)

	page, err := client.Fetch(context.Background(), "https://example.com/a?x=1&y=2")
	require.NoError(t, err)

	parsed, err := url.Parse(getter.url)
	require.NoError(t, err)
	assert.Equal(t, "archive.test", parsed.Host)
	assert.Equal(t, "https://example.com/a?x=1&y=2", parsed.Query().Get("url"))

	require.Len(t, reader.calls, 1)
	assert.Equal(t, "http://web.archive.org/web/20240101000000/https://example.com/a", reader.calls[0])
	assert.Equal(t, research.MethodArchive, page.Method)
	assert.Equal(t, "Archived", page.Title)
}

func TestFetchWithoutSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "empty snapshots", body: `{"url":"x","archived_snapshots":{}}`},
		{name: "non 200 status", body: `{"archived_snapshots":{"closest":{"status":"404","url":"http://web.archive.org/x"}}}`},
		{name: "missing url", body: `{"archived_snapshots":{"closest":{"status":"200"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reader := &stubReader{}
			client, err := New(&stubGetter{body: tt.body}, "", reader)
			require.NoError(t, err)

			_, err = client.Fetch(context.Background(), "https://example.com")
			assert.ErrorIs(t, err, ErrNoSnapshot)
			assert.Empty(t, reader.calls)
		})
	}
}

func TestFetchPropagatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	client, err := New(&stubGetter{err: boom}, "", &stubReader{})
	require.NoError(t, err)
	_, err = client.Fetch(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, boom)

	client, err = New(&stubGetter{body: "<html>"}, "", &stubReader{})
	require.NoError(t, err)
	_, err = client.Fetch(context.Background(), "https://example.com")
	assert.Error(t, err)

	readErr := errors.New("reader down")
	client, err = New(&stubGetter{body: snapshotJSON}, "", &stubReader{err: readErr})
	require.NoError(t, err)
	_, err = client.Fetch(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, readErr)
}
