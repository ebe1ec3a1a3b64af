package sdk

// State is the lifecycle of a Form:
//
//	Idle -> Loading -> Ready | LoadError
//	Ready -> Saving -> Done | SaveError
//	SaveError -> Saving (retry)
//
// Any state may re-enter Loading; the load in flight is then discarded.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateLoadError
	StateSaving
	StateSaveError
	StateDone
)

var stateNames = [...]string{"idle", "loading", "ready", "load-error", "saving", "save-error", "done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Editable reports whether values may be changed and submitted.
func (s State) Editable() bool { return s == StateReady || s == StateSaveError }

// Mode says whether a form creates a new document or edits an existing one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)
