package schema

import "slices"

// Universal field paths present on every entity regardless of variant.
const (
	PathID                = "id"
	PathName              = "name"
	PathType              = "type"
	PathSprite            = "sprite"
	PathDirection         = "direction"
	PathPosition          = "position"
	PathPositionX         = "position.x"
	PathPositionY         = "position.y"
	PathDescription       = "description"
	PathInteractionRadius = "interactionRadius"
	PathCooldownSeconds   = "cooldownSeconds"
	PathEnabled           = "enabled"
)

// Directions lists the values accepted by the direction field.
var Directions = []string{"up", "down", "left", "right"}

// universalPaths covers the fields checked by the basic and common passes.
var universalPaths = []string{
	PathID, PathName, PathType, PathSprite, PathDirection, PathPosition,
	PathPositionX, PathPositionY, PathDescription, PathInteractionRadius,
	PathCooldownSeconds, PathEnabled,
}

// IsUniversal reports whether path is one of the fields every variant shares.
func IsUniversal(path string) bool {
	return slices.Contains(universalPaths, path)
}

func universalSections() []sectionSpec {
	return []sectionSpec{
		{
			name:  "basic",
			label: "Basic info",
			fields: []Field{
				field(PathName, KindString, "Name", help("Display name, 2 to 50 characters.")),
				field(PathSprite, KindString, "Sprite", help("Sprite image file, e.g. shopkeeper.png.")),
				field(PathDirection, KindSelection, "Facing", options(Directions...), withDefault("down")),
				field(PathPositionX, KindNumber, "Position X", withDefault(0.0)),
				field(PathPositionY, KindNumber, "Position Y", withDefault(0.0)),
				field(PathDescription, KindString, "Description"),
			},
		},
		{
			name:  "behavior",
			label: "Behavior",
			fields: []Field{
				field(PathInteractionRadius, KindNumber, "Interaction radius",
					bounds(16, 128), withDefault(32.0), help("Pixels within which players can interact.")),
				field(PathCooldownSeconds, KindNumber, "Cooldown (seconds)", atLeast(0), withDefault(0.0)),
				field(PathEnabled, KindBoolean, "Enabled", withDefault(true)),
			},
		},
	}
}

// UniversalTemplate returns a fresh copy of the defaults shared by every
// entity. The id and type are left to the caller.
func UniversalTemplate() map[string]any {
	return map[string]any{
		PathName:      "",
		PathSprite:    "",
		PathDirection: "down",
		PathPosition: map[string]any{
			"x": 0.0,
			"y": 0.0,
		},
		PathInteractionRadius: 32.0,
		PathCooldownSeconds:   0.0,
		PathEnabled:           true,
	}
}
