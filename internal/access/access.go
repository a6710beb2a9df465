// Package access holds the single administrator identity that guards
// privileged ledger operations.
package access

import (
	"errors"
	"sync"

	"github.com/alfredjeanlab/vesting/internal/model"
)

var (
	ErrUnauthorized = errors.New("caller is not the administrator")
	ErrInvalidOwner = errors.New("new owner is the zero address")
)

// Gate tracks the current administrator. It is safe for concurrent use.
type Gate struct {
	mu    sync.RWMutex
	owner model.Address
}

// NewGate returns a Gate administered by owner.
func NewGate(owner model.Address) (*Gate, error) {
	if owner.IsZero() {
		return nil, ErrInvalidOwner
	}
	return &Gate{owner: owner}, nil
}

func (g *Gate) Owner() model.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owner
}

// RequireAdmin returns ErrUnauthorized unless caller is the administrator.
func (g *Gate) RequireAdmin(caller model.Address) error {
	if caller.IsZero() || caller != g.Owner() {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership hands the administrator role to newOwner and returns the
// previous owner.
func (g *Gate) TransferOwnership(caller, newOwner model.Address) (model.Address, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if caller.IsZero() || caller != g.owner {
		return "", ErrUnauthorized
	}
	if newOwner.IsZero() {
		return "", ErrInvalidOwner
	}
	prev := g.owner
	g.owner = newOwner
	return prev, nil
}
