package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMalformedUTF8 rejects bodies the JSON decoder would otherwise repair with U+FFFD
var ErrMalformedUTF8 = errors.New("malformed UTF-8 characters, possibly incorrectly encoded")

// Unknown substitutes every push field that is absent or not a string
const Unknown = "unknown"

/* Push is the part of a GitHub push event the receiver cares about
 * Fields are always set: missing or malformed values become Unknown
 */
type Push struct {
	// Ref is the full git ref that was pushed, e.g. "refs/heads/main"
	Ref string

	// Pusher is the login name of whoever pushed
	Pusher string

	// Repository is the "owner/name" of the repository
	Repository string
}

// ParsePush decodes a push event body.
// Only invalid JSON is an error; a valid document of any shape yields a Push.
func ParsePush(data []byte) (Push, error) {
	if !utf8.Valid(data) {
		return Push{}, fmt.Errorf("unmarshaling payload: %w", ErrMalformedUTF8)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Push{}, fmt.Errorf("unmarshaling payload: %w", err)
	}

	return Push{
		Ref:        stringAt(doc, "ref"),
		Pusher:     stringAt(doc, "pusher", "name"),
		Repository: stringAt(doc, "repository", "full_name"),
	}, nil
}

// stringAt walks nested objects along path and returns the string found
// there, or Unknown
func stringAt(doc any, path ...string) string {
	cur := doc
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return Unknown
		}
		if cur, ok = obj[key]; !ok {
			return Unknown
		}
	}

	s, ok := cur.(string)
	if !ok {
		return Unknown
	}
	return s
}
