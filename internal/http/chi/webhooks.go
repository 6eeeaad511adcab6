package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/httplog"
	"github.com/marcelsud/deployhook/deploy"
	"github.com/marcelsud/deployhook/metrics"
	"github.com/marcelsud/deployhook/webhook"
)

/* HTTP layer DTOs for the receiver
 * Every response shares one envelope: {status, message, ...extra}
 */

const (
	statusSuccess = "success"
	statusError   = "error"

	// reasonAccepted labels requests that passed every gate
	reasonAccepted = "accepted"
)

// postWebhook handles POST /webhook/<app>
func postWebhook(classifier webhook.UseCase, dispatcher deploy.UseCase, recorder metrics.Recorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// one byte over the limit is enough for the classifier to reject it
		body, err := io.ReadAll(io.LimitReader(r.Body, webhook.MaxPayloadBytes+1))
		defer r.Body.Close()
		if err != nil {
			writeResponse(w, http.StatusBadRequest, "Failed to read request body", nil)
			recorder.RequestHandled(ctx, "unreadable_body", http.StatusBadRequest)
			return
		}

		// the escaped path is used: a decoded %0A would start a new line in the log file
		event, err := classifier.Classify(ctx, webhook.Request{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Header: r.Header,
			Body:   body,
		})
		if err != nil {
			var rejection *webhook.Rejection
			if !errors.As(err, &rejection) {
				writeResponse(w, http.StatusInternalServerError, "Internal server error", nil)
				recorder.RequestHandled(ctx, "internal_error", http.StatusInternalServerError)
				return
			}
			code := rejection.Reason.StatusCode()
			writeResponse(w, code, rejection.Message, nil)
			recorder.RequestHandled(ctx, rejection.Reason.String(), code)
			return
		}

		httplog.LogEntrySetField(ctx, "app", event.Tenant)
		httplog.LogEntrySetField(ctx, "github_event", event.Name)
		httplog.LogEntrySetField(ctx, "github_delivery", event.DeliveryID)

		switch event.Kind {
		case webhook.Ping:
			writeResponse(w, http.StatusOK, "Pong! Webhook configured successfully.", map[string]string{
				"app": event.Tenant,
			})
		case webhook.Push:
			writeResponse(w, http.StatusOK, "Deployment started", map[string]string{
				"app":        event.Tenant,
				"ref":        event.Push.Ref,
				"repository": event.Push.Repository,
			})
			// the caller has its answer before the deploy script starts
			_ = http.NewResponseController(w).Flush()
			dispatcher.Dispatch(ctx, event.Tenant)
		default:
			writeResponse(w, http.StatusOK, fmt.Sprintf("Event '%s' acknowledged but not processed.", event.Name), map[string]string{
				"app":   event.Tenant,
				"event": event.Name,
			})
		}
		recorder.RequestHandled(ctx, reasonAccepted, http.StatusOK)
	})
}

// writeResponse writes the JSON envelope with an explicit Content-Length
func writeResponse(w http.ResponseWriter, code int, message string, extra map[string]string) {
	status := statusSuccess
	if code >= http.StatusBadRequest {
		status = statusError
	}

	response := make(map[string]string, len(extra)+2)
	for k, v := range extra {
		response[k] = v
	}
	response["status"] = status
	response["message"] = message

	data, err := json.Marshal(response)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(code)
	w.Write(data)
}
