package envelope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Resource is either a Plaintext payload or an *Envelope.
type Resource interface {
	isResource()
}

// Plaintext is a payload published without encryption.
type Plaintext json.RawMessage

func (Plaintext) isResource() {}

var trueLiteral = []byte("true")

// IsEncrypted reports whether body has the envelope shape. It does not attempt
// decryption.
func IsEncrypted(body []byte) bool {
	fields, ok := objectFields(body)
	return ok && hasEnvelopeShape(fields)
}

// Parse resolves body into a Resource. A body that claims to be encrypted but
// lacks a string iv or data is rejected instead of being passed through.
func Parse(body []byte) (Resource, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrMalformed)
	}

	fields, ok := objectFields(body)
	if !ok || !claimsEncrypted(fields) {
		return Plaintext(body), nil
	}
	if !hasEnvelopeShape(fields) {
		return nil, fmt.Errorf("%w: encrypted body without iv/data", ErrMalformed)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &env, nil
}

func objectFields(body []byte) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func claimsEncrypted(fields map[string]json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(fields["_encrypted"]), trueLiteral)
}

func hasEnvelopeShape(fields map[string]json.RawMessage) bool {
	if !claimsEncrypted(fields) {
		return false
	}
	for _, name := range []string{"iv", "data"} {
		raw := bytes.TrimSpace(fields[name])
		if len(raw) == 0 || raw[0] != '"' {
			return false
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
	}
	return true
}

// KeySource supplies the key material of the current session.
type KeySource interface {
	Key(ctx context.Context) (string, bool)
}

// Opener decrypts envelopes with the key held by Keys at call time.
type Opener struct {
	Keys KeySource
}

// Open decrypts env with the current session key. It fails with ErrMissingKey
// when the session holds no key.
func (o Opener) Open(ctx context.Context, env *Envelope) (json.RawMessage, error) {
	if o.Keys == nil {
		return nil, ErrMissingKey
	}
	key, ok := o.Keys.Key(ctx)
	if !ok {
		return nil, ErrMissingKey
	}
	return Decrypt(env, key)
}
