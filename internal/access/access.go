// Package access decides which operations a caller may perform. Every role
// maps to a fixed capability set that is checked once per operation.
package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/models"
)

type Capability uint16

const (
	SubmitRequest Capability = 1 << iota
	ViewAllRequests
	ReviewRequest
	ManageCatalog
	Download
	ManageConfig
	ManageUsers
	ViewAudit
	ViewStats
)

var capabilityNames = map[Capability]string{
	SubmitRequest:   "submit_request",
	ViewAllRequests: "view_all_requests",
	ReviewRequest:   "review_request",
	ManageCatalog:   "manage_catalog",
	Download:        "download",
	ManageConfig:    "manage_config",
	ManageUsers:     "manage_users",
	ViewAudit:       "view_audit",
	ViewStats:       "view_stats",
}

func (c Capability) String() string {
	if n, ok := capabilityNames[c]; ok {
		return n
	}
	return fmt.Sprintf("capability(%d)", uint16(c))
}

// Set is a bit set of capabilities.
type Set uint16

func (s Set) Has(c Capability) bool { return s&Set(c) == Set(c) }

func setOf(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s |= Set(c)
	}
	return s
}

var (
	userCaps = setOf(SubmitRequest, Download, ViewStats)
	opsCaps  = userCaps | setOf(ViewAllRequests, ReviewRequest, ManageCatalog, ManageConfig, ViewAudit)
	adminCap = opsCaps | setOf(ManageUsers)
)

// Capabilities returns the capability set granted to role. Unknown roles get
// nothing.
func Capabilities(role models.Role) Set {
	switch role {
	case models.RoleAdmin:
		return adminCap
	case models.RoleOps:
		return opsCaps
	case models.RoleUser:
		return userCaps
	}
	return 0
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Role     models.Role
}

func (p *Principal) Can(c Capability) bool {
	return p != nil && Capabilities(p.Role).Has(c)
}

// Check returns ErrUnauthorized without a principal and ErrForbidden when
// the principal's role lacks c.
func Check(p *Principal, c Capability) error {
	if p == nil {
		return apperr.ErrUnauthorized
	}
	if !p.Can(c) {
		return fmt.Errorf("%s requires %s: %w", p.Role, c, apperr.ErrForbidden)
	}
	return nil
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by the auth middleware, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxKey{}).(*Principal)
	return p
}
