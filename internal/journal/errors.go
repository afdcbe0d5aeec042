package journal

import "errors"

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrUndoConflict means the inverse (or redone forward) operation no
	// longer applies cleanly to the current inventory, for example undoing
	// an add while the spot has live sessions. The journal is left
	// untouched.
	ErrUndoConflict = errors.New("undo conflicts with current state")

	ErrActionNotFound = errors.New("admin action not found")
)
