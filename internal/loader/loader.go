// Package loader fetches a published resource and, when it is sealed, opens it
// with the key material of the current session.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/nordcup/ridevault/internal/envelope"
)

// DefaultMaxBodySize bounds the response body read by Load.
const DefaultMaxBodySize = 16 << 20

var (
	// ErrMissingKey means the resource is sealed and the session holds no key.
	ErrMissingKey = envelope.ErrMissingKey
	// ErrDecryptionFailed means the stored key did not open the envelope.
	ErrDecryptionFailed = envelope.ErrDecryptionFailed
	// ErrMalformedResponse means the body or the decrypted payload is not usable JSON.
	ErrMalformedResponse = errors.New("loader: malformed response")
)

// NetworkError reports a transport failure, a cancelled request or a non-2xx status.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("loader: fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("loader: fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Loader retrieves protected resources.
type Loader struct {
	client  *http.Client
	opener  envelope.Opener
	maxBody int64
	log     *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithMaxBodySize limits how many bytes of a response are accepted.
func WithMaxBodySize(n int64) Option {
	return func(l *Loader) { l.maxBody = n }
}

// New returns a Loader that fetches with client and reads the key from keys at
// load time. A nil client means http.DefaultClient.
func New(client *http.Client, keys envelope.KeySource, opts ...Option) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	l := &Loader{
		client:  client,
		opener:  envelope.Opener{Keys: keys},
		maxBody: DefaultMaxBodySize,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	return l
}

// Load fetches url and returns its JSON payload. Plaintext bodies are returned
// unchanged; sealed bodies are decrypted with the current session key. Nothing
// is cached and nothing is retried.
func (l *Loader) Load(ctx context.Context, url string) (json.RawMessage, error) {
	body, err := l.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	res, err := envelope.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch r := res.(type) {
	case envelope.Plaintext:
		return json.RawMessage(r), nil
	case *envelope.Envelope:
		return l.open(ctx, url, r)
	default:
		return nil, fmt.Errorf("%w: unexpected resource %T", ErrMalformedResponse, res)
	}
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBody+1))
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	if int64(len(body)) > l.maxBody {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedResponse, l.maxBody)
	}
	return body, nil
}

func (l *Loader) open(ctx context.Context, url string, env *envelope.Envelope) (json.RawMessage, error) {
	payload, err := l.opener.Open(ctx, env)
	switch {
	case err == nil:
		return payload, nil
	case errors.Is(err, envelope.ErrMissingKey):
		return nil, ErrMissingKey
	case errors.Is(err, envelope.ErrDecryptionFailed), errors.Is(err, envelope.ErrInvalidKey):
		l.log.Warn("sealed resource did not open", zap.String("url", url))
		return nil, ErrDecryptionFailed
	case errors.Is(err, envelope.ErrMalformed):
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	default:
		return nil, err
	}
}
