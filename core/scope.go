package core

import "fmt"

// SourceType identifies which isolation boundary a document belongs to.
type SourceType int

const (
	// SourceSystem is the shared, organization-wide knowledge base.
	SourceSystem SourceType = iota + 1
	// SourceUser is a single user's personal document space.
	SourceUser
	// SourceTenant is a tenant-wide shared space.
	SourceTenant
)

// String returns the lowercase name of the source type.
func (s SourceType) String() string {
	switch s {
	case SourceSystem:
		return "system"
	case SourceUser:
		return "user"
	case SourceTenant:
		return "tenant"
	default:
		return fmt.Sprintf("sourcetype(%d)", int(s))
	}
}

// Scope pins a document to exactly one isolation boundary. System documents
// carry no identifier, user documents carry OwnerId, tenant documents carry
// TenantId. Construct scopes through SystemScope, UserScope and TenantScope
// so the pairing stays right.
type Scope struct {
	Source   SourceType
	OwnerId  string
	TenantId string
}

// SystemScope returns the scope of the shared knowledge base.
func SystemScope() Scope {
	return Scope{Source: SourceSystem}
}

// UserScope returns the scope of one user's private documents.
func UserScope(ownerID string) Scope {
	return Scope{Source: SourceUser, OwnerId: ownerID}
}

// TenantScope returns the scope shared by one tenant.
func TenantScope(tenantID string) Scope {
	return Scope{Source: SourceTenant, TenantId: tenantID}
}

// Namespace derives the vector index partition for this scope. Every valid
// scope maps to exactly one namespace and namespaces never overlap, which is
// what keeps one tenant's chunks out of another's queries. The same string
// also bounds content-hash deduplication. Malformed scopes are rejected,
// never coerced into the system namespace.
func (s Scope) Namespace() (string, error) {
	if err := ValidateScope(s); err != nil {
		return "", err
	}
	switch s.Source {
	case SourceSystem:
		return "system", nil
	case SourceUser:
		return "user-" + s.OwnerId, nil
	default:
		return "tenant-" + s.TenantId, nil
	}
}
