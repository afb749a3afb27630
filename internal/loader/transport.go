package loader

import (
	"net/http"
)

// NewTransport returns a clone of the default transport that also serves
// file:// URLs from publicDir, so a server can load the asset it publishes
// without a network hop.
func NewTransport(publicDir string) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.RegisterProtocol("file", http.NewFileTransport(http.Dir(publicDir)))
	return t
}
