package webhook

/* Kind represents how the receiver reacts to a verified event
 * Ping acknowledges, Push deploys, Other is acknowledged and ignored
 */
type Kind int

const (
	Other Kind = iota
	Ping
	Push
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case Ping:
		return "ping"
	case Push:
		return "push"
	default:
		return "other"
	}
}

// NewKind maps an X-GitHub-Event header value to a Kind
func NewKind(event string) Kind {
	switch event {
	case "ping":
		return Ping
	case "push":
		return Push
	default:
		return Other
	}
}
