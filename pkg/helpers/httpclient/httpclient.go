package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Options controls the HTTP client shared by the provider adapters.
type Options struct {
	// Timeout is the client-wide ceiling. Per exchange deadlines come from the
	// request context and are normally shorter.
	Timeout             time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	IdleConnTimeout     time.Duration
	MaxIdleConnsPerHost int
	Transport           http.RoundTripper
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithTransport replaces the default transport, e.g. with a recording round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *Options) { o.Transport = rt }
}

func DefaultOptions() Options {
	return Options{
		Timeout:             5 * time.Minute,
		DialTimeout:         15 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 4,
	}
}

func New(opts ...Option) *http.Client {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	transport := options.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   options.DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConnsPerHost: options.MaxIdleConnsPerHost,
			IdleConnTimeout:     options.IdleConnTimeout,
			TLSHandshakeTimeout: options.TLSHandshakeTimeout,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}

	return &http.Client{
		Timeout:   options.Timeout,
		Transport: transport,
	}
}
