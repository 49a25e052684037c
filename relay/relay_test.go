package relay

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(Handler())
	t.Cleanup(srv.Close)

	t.Run("serves-page", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		resp, err := http.Get(srv.URL + DefaultPath)
		require.NoError(err)
		defer resp.Body.Close()

		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Equal("text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Contains(resp.Header.Get("Cache-Control"), "max-age")

		body, err := io.ReadAll(resp.Body)
		require.NoError(err)
		assert.Contains(string(body), "postMessage")
		assert.Contains(string(body), "window.location.origin")
	})
	t.Run("head", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		resp, err := http.Head(srv.URL + DefaultPath)
		require.NoError(err)
		defer resp.Body.Close()
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.NotEmpty(resp.Header.Get("Content-Length"))
	})
	t.Run("post-not-allowed", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		resp, err := http.Post(srv.URL+DefaultPath, "text/plain", nil)
		require.NoError(err)
		defer resp.Body.Close()
		assert.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestURL(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	root, err := url.Parse("https://app.example.com/?x=1#frag")
	require.NoError(err)
	assert.Equal("https://app.example.com"+DefaultPath, URL(root).String())

	// an app served under a base path keeps the relay under that base
	based, err := url.Parse("https://app.example.com/myapp")
	require.NoError(err)
	assert.Equal("https://app.example.com/myapp"+DefaultPath, URL(based).String())

	trailing, err := url.Parse("https://app.example.com/myapp/")
	require.NoError(err)
	assert.Equal("https://app.example.com/myapp"+DefaultPath, URL(trailing).String())

	assert.Equal(DefaultPath, URL(nil).String())
}
