package webhook

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/marcelsud/deployhook/logsink"
	"github.com/marcelsud/deployhook/tenant"
	"github.com/marcelsud/deployhook/webhook/payload"
	"github.com/marcelsud/deployhook/webhook/signature"
)

const (
	// MaxPayloadBytes is the largest body accepted (10 MiB)
	MaxPayloadBytes = 10 * 1024 * 1024

	// EventHeader names the GitHub event type
	EventHeader = "X-GitHub-Event"

	// DeliveryHeader carries GitHub's unique id of the delivery
	DeliveryHeader = "X-GitHub-Delivery"

	unknownEvent = "unknown"
)

// routePattern matches /webhook/<tenant> with an optional trailing slash
var routePattern = regexp.MustCompile(`^/webhook/([A-Za-z0-9_-]+)/?$`)

/* Service represents the classification layer
 * Uses pointer semantics as it's an API, not data
 */

// UseCase turns an inbound request into a verified event or a rejection
type UseCase interface {
	Classify(ctx context.Context, req Request) (Event, error)
}

type Service struct {
	Store  tenant.Store
	Log    *logsink.Logger
	verify func(payload, secret []byte, header string) bool
}

type option func(*Service)

// WithVerifier replaces the signature check, used to observe when it runs
func WithVerifier(fn func(payload, secret []byte, header string) bool) option {
	return func(s *Service) {
		s.verify = fn
	}
}

// NewService creates a new classifier with dependency injection
func NewService(store tenant.Store, log *logsink.Logger, opts ...option) *Service {
	s := &Service{
		Store:  store,
		Log:    log,
		verify: signature.Verify,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Classify runs the request through every gate in order. The first failing
// gate ends classification with a *Rejection.
func (s *Service) Classify(ctx context.Context, req Request) (Event, error) {
	if req.Method != http.MethodPost {
		s.Log.Warnf("Invalid request method: %s", req.Method)
		return Event{}, reject(MethodNotAllowed, "Method not allowed. Use POST.")
	}

	// GitHub always sends a JSON body, whatever the configured content type
	contentType := req.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "json") {
		s.Log.Warnf("Unexpected Content-Type: %s (continuing anyway)", contentType)
	}

	match := routePattern.FindStringSubmatch(req.Path)
	if match == nil {
		s.Log.Warnf("Invalid webhook URL: %s", req.Path)
		return Event{}, reject(BadRoute, "Invalid webhook URL. Expected /webhook/<app>")
	}
	id := match[1]

	deliveryID := req.Header.Get(DeliveryHeader)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	s.Log.Infof("Webhook received for: %s (delivery %s)", id, deliveryID)

	if !s.Store.Exists(ctx, id) {
		s.Log.Warnf("App not found: %s", id)
		return Event{}, reject(TenantNotFound, "App not found")
	}

	secret, ok := s.Store.Secret(ctx, id)
	if !ok {
		s.Log.Warnf("No webhook secret configured for: %s", id)
		return Event{}, reject(TenantNotConfigured, "Webhook not configured for this app")
	}

	if len(req.Body) == 0 {
		s.Log.Warnf("Empty payload received for: %s", id)
		return Event{}, reject(EmptyPayload, "Empty payload")
	}

	if len(req.Body) > MaxPayloadBytes {
		s.Log.Warnf("Payload too large for: %s (size: %d)", id, len(req.Body))
		return Event{}, reject(PayloadTooLarge, "Payload too large. Maximum size is 10MB.")
	}

	if !s.verify(req.Body, secret, req.Header.Get(signature.Header)) {
		s.Log.Warnf("Invalid signature for: %s", id)
		return Event{}, reject(InvalidSignature, "Invalid signature")
	}
	s.Log.Infof("Signature validated for: %s", id)

	name := req.Header.Get(EventHeader)
	if name == "" {
		name = unknownEvent
	}

	event := Event{
		Tenant:     id,
		Kind:       NewKind(name),
		Name:       name,
		DeliveryID: deliveryID,
	}

	switch event.Kind {
	case Ping:
		s.Log.Infof("Ping received for: %s", id)
	case Push:
		push, err := payload.ParsePush(req.Body)
		if err != nil {
			cause := errors.Unwrap(err)
			if cause == nil {
				cause = err
			}
			s.Log.Warnf("Invalid JSON payload for: %s - %v", id, cause)
			return Event{}, reject(InvalidJSON, "Invalid JSON payload: %v", cause)
		}
		event.Push = &push
		s.Log.Infof("Push event: %s (%s) by %s", push.Repository, push.Ref, push.Pusher)
	default:
		s.Log.Infof("Ignoring event type '%s' for: %s", name, id)
	}

	return event, nil
}
