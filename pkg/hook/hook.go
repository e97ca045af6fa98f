// Package hook redirects a function slot to a replacement and back.
//
// A slot is any variable holding a function value, for example the entry of a
// native table. Install swaps the replacement in and keeps the previous value
// as the original, Remove puts the original back, Reinstall swaps the
// replacement in again.
package hook

// Hook is a reversible redirection of one function slot.
type Hook[F any] struct {
	slot        *F
	original    F
	replacement F
	installed   bool
}

// Install redirects slot to replacement. It fails if the hook is already
// bound to a slot or if slot is nil.
func (h *Hook[F]) Install(slot *F, replacement F) bool {
	if slot == nil || h.slot != nil {
		return false
	}
	h.slot = slot
	h.original = *slot
	h.replacement = replacement
	*slot = replacement
	h.installed = true
	return true
}

// Remove restores the original. It reports whether the hook was installed.
func (h *Hook[F]) Remove() bool {
	if !h.installed {
		return false
	}
	*h.slot = h.original
	h.installed = false
	return true
}

// Reinstall redirects the slot again after Remove.
func (h *Hook[F]) Reinstall() bool {
	if h.slot == nil || h.installed {
		return false
	}
	*h.slot = h.replacement
	h.installed = true
	return true
}

// Installed reports whether the slot currently holds the replacement.
func (h *Hook[F]) Installed() bool {
	return h.installed
}

// Original returns the function the slot held before Install. It stays
// callable while the hook is installed.
func (h *Hook[F]) Original() F {
	return h.original
}

// ScopedRemove takes a hook out for the lifetime of a scope:
//
//	undo := hook.NewScopedRemove(h)
//	defer undo.Close()
type ScopedRemove[F any] struct {
	h       *Hook[F]
	removed bool
}

// NewScopedRemove removes h. Close reinstalls it only if this call was the
// one that removed it.
func NewScopedRemove[F any](h *Hook[F]) *ScopedRemove[F] {
	return &ScopedRemove[F]{h: h, removed: h.Remove()}
}

// Removed reports whether this scope took the hook out.
func (s *ScopedRemove[F]) Removed() bool {
	return s.removed
}

// Close reinstalls the hook if needed. Calling it again does nothing.
func (s *ScopedRemove[F]) Close() {
	if s.removed {
		s.removed = false
		s.h.Reinstall()
	}
}
