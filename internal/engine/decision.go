package engine

// Action is what the engine does with the persisted index at construction.
type Action int

const (
	// ActionCreate creates a new index and ingests the guideline directory.
	ActionCreate Action = iota
	// ActionAttach reuses the persisted index without reading any guideline file.
	ActionAttach
	// ActionReload opens the index and re-ingests every guideline file.
	ActionReload
)

func (a Action) String() string {
	switch a {
	case ActionAttach:
		return "attach"
	case ActionReload:
		return "reload"
	default:
		return "create"
	}
}

// Decide picks the startup action from the force-reload flag and the on-disk state.
func Decide(forceReload, pathExists, pathNonEmpty bool) Action {
	switch {
	case forceReload:
		return ActionReload
	case pathExists && pathNonEmpty:
		return ActionAttach
	default:
		return ActionCreate
	}
}
