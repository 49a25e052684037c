package urlutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParam(t *testing.T) {
	t.Parallel()
	u, err := url.Parse("https://example.com/app?code=abc&empty=")
	require.NoError(t, err)

	t.Run("present", func(t *testing.T) {
		assert := assert.New(t)
		got, ok := Param(u, "code")
		assert.True(ok)
		assert.Equal("abc", got)
	})
	t.Run("present-but-empty", func(t *testing.T) {
		assert := assert.New(t)
		got, ok := Param(u, "empty")
		assert.True(ok)
		assert.Equal("", got)
	})
	t.Run("absent", func(t *testing.T) {
		assert := assert.New(t)
		_, ok := Param(u, "state")
		assert.False(ok)
	})
	t.Run("nil-url", func(t *testing.T) {
		assert := assert.New(t)
		_, ok := Param(nil, "state")
		assert.False(ok)
	})
}

func TestWithParam(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	u, err := url.Parse("https://example.com/app?one=1")
	require.NoError(err)

	got := WithParam(u, "two", "2")
	assert.Equal("https://example.com/app?one=1&two=2", got.String())
	// input untouched
	assert.Equal("https://example.com/app?one=1", u.String())
}

func TestWithoutParams(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	u, err := url.Parse("https://example.com/app?code=abc&state=st&keep=yes")
	require.NoError(err)

	got := WithoutParams(u, "code", "state", "session_state")
	assert.Equal("https://example.com/app?keep=yes", got.String())
	assert.Equal("https://example.com/app?code=abc&state=st&keep=yes", u.String())
}
