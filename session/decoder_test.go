package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoseDecoder_Expiration(t *testing.T) {
	t.Parallel()
	d := JoseDecoder{}

	t.Run("with-expiry", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		want := time.Now().Add(time.Hour).Truncate(time.Second)
		got, ok, err := d.Expiration(testSignJWT(t, want, true))
		require.NoError(err)
		assert.True(ok)
		assert.True(got.Equal(want))
	})
	t.Run("without-expiry", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, ok, err := d.Expiration(testSignJWT(t, time.Time{}, false))
		require.NoError(err)
		assert.False(ok)
	})
	t.Run("not-a-jwt", func(t *testing.T) {
		assert := assert.New(t)
		_, ok, err := d.Expiration("one.two")
		assert.Error(err)
		assert.False(ok)
	})
	t.Run("empty", func(t *testing.T) {
		assert := assert.New(t)
		_, _, err := d.Expiration("")
		assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
	})
}
