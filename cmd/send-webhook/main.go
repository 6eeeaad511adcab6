package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/google/uuid"
	"github.com/marcelsud/deployhook/webhook"
	"github.com/marcelsud/deployhook/webhook/signature"
	"github.com/spf13/pflag"
)

/* send-webhook - signs and sends a GitHub style delivery to a running receiver
 * Usage: go run cmd/send-webhook/main.go --app bob --secret s3cr3t [--event push]
 * Exit codes: 0 = 2xx response, 1 = anything else
 */

type arguments struct {
	URL    *string
	App    *string
	Secret *string
	Event  *string
	Ref    *string
	Repo   *string
	Pusher *string
}

func parseArguments() arguments {
	args := arguments{
		URL:    pflag.StringP("url", "u", "http://localhost:8080", "base URL of the receiver"),
		App:    pflag.StringP("app", "a", "", "tenant id, the request goes to /webhook/<app>"),
		Secret: pflag.StringP("secret", "s", "", "webhook secret of the tenant"),
		Event:  pflag.StringP("event", "e", "ping", "X-GitHub-Event value (ping, push or any other event name)"),
		Ref:    pflag.String("ref", "refs/heads/main", "ref of the push payload"),
		Repo:   pflag.String("repo", "org/repo", "repository full name of the push payload"),
		Pusher: pflag.String("pusher", "deployhook", "pusher name of the push payload"),
	}

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s --app <id> --secret <secret> [OPTION]\nSend a signed webhook delivery to a deployhook receiver.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
	return args
}

func main() {
	args := parseArguments()
	if *args.App == "" || *args.Secret == "" {
		pflag.Usage()
		os.Exit(1)
	}

	body, err := buildPayload(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url := strings.TrimRight(*args.URL, "/") + "/webhook/" + *args.App
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	deliveryID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.EventHeader, *args.Event)
	req.Header.Set(webhook.DeliveryHeader, deliveryID)
	req.Header.Set(signature.Header, signature.Sign(body, []byte(*args.Secret)))

	fmt.Printf("POST %s (event %s, delivery %s, %d bytes)\n", url, *args.Event, deliveryID, len(body))
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading response: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s\n%s\n", res.Status, data)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		os.Exit(1)
	}
}

// buildPayload renders the body GitHub would send for the event
func buildPayload(args arguments) ([]byte, error) {
	var event any
	switch *args.Event {
	case "ping":
		event = github.PingEvent{
			Zen:    github.String("Keep it logically awesome."),
			HookID: github.Int64(1),
		}
	case "push":
		event = github.PushEvent{
			Ref:    args.Ref,
			Pusher: &github.CommitAuthor{Name: args.Pusher},
			Repo:   &github.PushEventRepository{FullName: args.Repo},
		}
	default:
		event = map[string]string{"action": "created"}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", *args.Event, err)
	}
	return body, nil
}
