package host

import (
	"github.com/nerrad567/gray-logic-accessors/internal/accessor"
	"github.com/nerrad567/gray-logic-accessors/internal/accessors/blink"
	"github.com/nerrad567/gray-logic-accessors/internal/accessors/hue"
	"github.com/nerrad567/gray-logic-accessors/internal/accessors/scarab"
)

// DefaultKinds returns the built-in accessor kinds.
func DefaultKinds() accessor.Kinds {
	return accessor.Kinds{
		hue.Kind:    hue.New,
		scarab.Kind: scarab.New,
		blink.Kind:  blink.New,
	}
}
