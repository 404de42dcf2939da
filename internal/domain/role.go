package domain

import (
	"fmt"
	"sync"
)

// Role is a named capability required by privileged entry points.
type Role string

const (
	// RoleAdmin may change fees, caps, and onboard or deactivate children.
	RoleAdmin Role = "admin"
	// RoleOperator may deploy capital and trigger rebalances.
	RoleOperator Role = "operator"
	// RoleGuardian may pause, unpause, and trigger emergency withdrawals.
	RoleGuardian Role = "guardian"
)

// AccessController is an explicit capability table: caller address -> granted
// roles. Every sensitive entry point calls Require rather than assuming
// ambient trust. Safe for concurrent use.
type AccessController struct {
	mu    sync.RWMutex
	roles map[string]map[Role]bool
}

// NewAccessController builds a controller from a caller -> roles grant map.
func NewAccessController(grants map[string][]Role) *AccessController {
	ac := &AccessController{roles: make(map[string]map[Role]bool, len(grants))}
	for caller, rs := range grants {
		set := make(map[Role]bool, len(rs))
		for _, r := range rs {
			set[r] = true
		}
		ac.roles[caller] = set
	}
	return ac
}

// Grant adds a role to a caller.
func (ac *AccessController) Grant(caller string, role Role) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.roles[caller] == nil {
		ac.roles[caller] = make(map[Role]bool)
	}
	ac.roles[caller][role] = true
}

// Require returns ErrUnauthorized unless caller holds the role.
func (ac *AccessController) Require(caller string, role Role) error {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	if ac.roles[caller][role] {
		return nil
	}
	return fmt.Errorf("caller %s requires role %s: %w", caller, role, ErrUnauthorized)
}
