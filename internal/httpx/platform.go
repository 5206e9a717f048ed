package httpx

import (
	"net/http"

	"github.com/google/uuid"
)

type Platform string

const (
	PlatformWeb Platform = "web"
	PlatformCLI Platform = "cli"
)

const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderPlatform      = "X-Client-Platform"
	HeaderAppVersion    = "X-App-Version"
)

// ClientMeta identifies this client on outbound backend requests.
type ClientMeta struct {
	Platform   Platform
	AppVersion string
}

// Apply stamps req with the client headers and a fresh correlation id, and
// returns that id for logging.
func (m ClientMeta) Apply(req *http.Request) string {
	id := uuid.NewString()
	req.Header.Set(HeaderCorrelationID, id)
	if m.Platform != "" {
		req.Header.Set(HeaderPlatform, string(m.Platform))
	}
	if m.AppVersion != "" {
		req.Header.Set(HeaderAppVersion, m.AppVersion)
	}
	return id
}
