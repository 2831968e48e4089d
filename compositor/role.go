package compositor

import (
	"errors"
	"fmt"
)

// ErrRoleConflict is returned when a role is assigned to a surface
// that already has one.
var ErrRoleConflict = errors.New("surface already has a role")

// Role is what a surface has been made into. A surface without a
// role has a nil Role. The set of roles is closed.
type Role interface {
	role() string
}

type ShellTopLevel struct{}

type ShellTransient struct {
	Parent Handle
	X, Y   int32
	Flags  uint32
}

type ShellPopup struct{}

type SubSurface struct {
	Parent Handle
}

func (ShellTopLevel) role() string  { return "shell top-level" }
func (ShellTransient) role() string { return "shell transient" }
func (ShellPopup) role() string     { return "shell popup" }
func (SubSurface) role() string     { return "sub-surface" }

// IsShellRole reports whether r is one of the roles given out by
// wl_shell_surface.
func IsShellRole(r Role) bool {
	switch r.(type) {
	case ShellTopLevel, ShellTransient, ShellPopup:
		return true
	default:
		return false
	}
}

// RoleName returns a readable name for r.
func RoleName(r Role) string {
	if r == nil {
		return "none"
	}
	return r.role()
}

// Role returns the surface's role, or nil if it has none.
func (s *Surface) Role() Role {
	return s.role
}

// SetRole gives the surface its role. It fails with ErrRoleConflict,
// leaving the surface untouched, if the surface already has one.
func (s *Surface) SetRole(r Role) error {
	if s.role != nil {
		return fmt.Errorf("%w: %v", ErrRoleConflict, RoleName(s.role))
	}
	s.role = r
	return nil
}

// SetShellMode switches a wl_shell_surface between top-level,
// transient and popup. Only surfaces that already have a shell role
// can do so.
func (s *Surface) SetShellMode(r Role) error {
	if !IsShellRole(s.role) || !IsShellRole(r) {
		return fmt.Errorf("%w: cannot switch %v to %v", ErrRoleConflict, RoleName(s.role), RoleName(r))
	}
	s.role = r
	return nil
}
