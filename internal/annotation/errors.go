package annotation

import "errors"

// Configuration errors.
var (
	ErrStyleNotLoaded       = errors.New("style is not fully loaded")
	ErrConflictingPlacement = errors.New("aboveLayerId and belowLayerId are mutually exclusive")
	ErrInvalidProperty      = errors.New("invalid property value")
	ErrInvalidGeometry      = errors.New("invalid geometry")
	ErrUnknownKind          = errors.New("unknown annotation kind")
)

// Usage errors.
var (
	ErrUnknownProperty  = errors.New("unknown property")
	ErrAlreadyOwned     = errors.New("annotation already belongs to a container or manager")
	ErrNotTracked       = errors.New("annotation is not tracked")
	ErrKeyMismatch      = errors.New("annotation layer configuration does not match manager")
	ErrKeyLocked        = errors.New("layer-level property is fixed once added; build a new annotation")
	ErrDestroyed        = errors.New("manager is destroyed")
	ErrContainerManaged = errors.New("manager belongs to a container; add annotations through it")
)
