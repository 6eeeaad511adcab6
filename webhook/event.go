package webhook

import (
	"net/http"

	"github.com/marcelsud/deployhook/webhook/payload"
)

/* Request is the inbound HTTP request reduced to what the classifier reads
 * Uses value semantics, it is never modified after being built
 */
type Request struct {
	Method string
	Path   string // escaped URL path, as sent on the request line
	Header http.Header
	Body   []byte
}

/* Event is a request whose signature has been verified
 * Only Classify creates events
 */
type Event struct {
	Tenant     string
	Kind       Kind
	Name       string // raw X-GitHub-Event value, "unknown" when missing
	DeliveryID string
	Push       *payload.Push // set only for Kind == Push
}
