package httputil

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientTiersAreSingletons(t *testing.T) {
	assert.Same(t, Client(TierMedium), Client(TierMedium))
	assert.NotSame(t, Client(TierFast), Client(TierSlow))
}

func TestClientTimeouts(t *testing.T) {
	assert.Equal(t, 5*time.Second, FastClient().Timeout)
	assert.Equal(t, 30*time.Second, MediumClient().Timeout)
	assert.Equal(t, 60*time.Second, SlowClient().Timeout)
	assert.Same(t, MediumClient(), Client(TimeoutTier(99)), "unknown tiers fall back to medium")
}

func TestReadResponseBodyCapsAtMaxSize(t *testing.T) {
	got, err := ReadResponseBody(strings.NewReader(strings.Repeat("x", 1000)), 100)
	require.NoError(t, err)
	assert.Len(t, got, 100)

	got, err = ReadResponseBody(strings.NewReader("test"), 0)
	require.NoError(t, err)
	assert.Equal(t, "test", string(got), "zero max falls back to the default cap")
}

func TestReadErrorBodyCapsAtOneMB(t *testing.T) {
	got, err := ReadErrorBody(strings.NewReader(strings.Repeat("error details ", 100000)))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), 1024*1024)
}

type trackingReader struct {
	io.Reader
	fullyRead bool
}

func (r *trackingReader) Read(p []byte) (n int, err error) {
	n, err = r.Reader.Read(p)
	if err == io.EOF {
		r.fullyRead = true
	}
	return
}

func TestDrainAndCloseFullyDrains(t *testing.T) {
	r := &trackingReader{Reader: bytes.NewReader([]byte("test data"))}
	DrainAndClose(io.NopCloser(r))
	assert.True(t, r.fullyRead)
}

func TestDrainAndCloseNilBody(t *testing.T) {
	DrainAndClose(nil)
}
