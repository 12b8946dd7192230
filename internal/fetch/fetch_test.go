package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const posting = `<html><head><title>Role</title><style>body{color:red}</style>
<script>var tracking = 1;</script></head>
<body><h1>Java   Developer</h1>
<p>Collaborate with
business teams.</p><noscript>enable js</noscript></body></html>`

func TestExtractText(t *testing.T) {
	text, err := ExtractText(strings.NewReader(posting), 0)
	require.NoError(t, err)
	assert.Equal(t, "Role Java Developer Collaborate with business teams.", text)

	short, err := ExtractText(strings.NewReader(posting), 9)
	require.NoError(t, err)
	assert.Equal(t, "Role Java", short)
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/job/1", true},
		{"  http://example.com ", true},
		{"example.com", false},
		{"ftp://example.com", false},
		{"https://", false},
		{"Java developer", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsURL(tt.in))
		})
	}
}

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(posting))
		case "/empty":
			_, _ = w.Write([]byte("<html><script>x()</script></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewResolver(Options{}, nil)

	text, err := r.Resolve(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Contains(t, text, "Java Developer")
	assert.NotContains(t, text, "tracking")

	tests := []struct {
		name string
		url  string
		msg  string
	}{
		{"not found", srv.URL + "/missing", "HTTP status 404"},
		{"no text", srv.URL + "/empty", "page has no text"},
		{"invalid", "not a url", "invalid URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.url)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFetch)
			var fe *Error
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.msg, fe.Message)
		})
	}
}

func TestResolveTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	r := NewResolver(Options{Timeout: 20 * time.Millisecond}, nil)
	_, err := r.Resolve(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
}
