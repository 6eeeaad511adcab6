package tenant

import (
	"context"
	"fmt"
	"regexp"
)

// idPattern is the set of identifiers that may appear in a webhook URL
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

/* Tenant is a deployment target as seen by the receiver
 * Records are owned by the operator; this service only reads them
 */
type Tenant struct {
	ID        string
	HasSecret bool
}

// Validate checks if the tenant record is usable
func (t Tenant) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("tenant id cannot be empty")
	}
	if !ValidID(t.ID) {
		return fmt.Errorf("tenant id %q must match %s", t.ID, idPattern.String())
	}
	return nil
}

// ValidID reports whether id only uses URL-safe identifier characters
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

/* Store is the read-only view of the tenant configuration
 * Both lookups degrade to "not found" when the source cannot be read
 */
type Store interface {
	Exists(ctx context.Context, id string) bool
	Secret(ctx context.Context, id string) ([]byte, bool)
}

// Lister is implemented by stores that can enumerate their tenants
type Lister interface {
	List(ctx context.Context) ([]Tenant, error)
}
