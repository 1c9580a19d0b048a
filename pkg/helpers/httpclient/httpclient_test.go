package httpclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestNewDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultOptions().Timeout, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 4, tr.MaxIdleConnsPerHost)
}

func TestNewWithOptions(t *testing.T) {
	rt := roundTripperFunc(func(*http.Request) (*http.Response, error) { return nil, nil })
	c := New(WithTimeout(time.Second), WithTransport(rt))
	assert.Equal(t, time.Second, c.Timeout)
	_, isTransport := c.Transport.(*http.Transport)
	assert.False(t, isTransport)
}
