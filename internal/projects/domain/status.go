package domain

// Event is something that happened to a project that may move its status.
type Event string

const (
	EventCommandProcessed       Event = "command_processed"
	EventTransformationAttached Event = "transformation_attached"
)

// NextStatus applies ev to current. A processed command moves any project to
// in-progress and an attached transformation moves it to completed. No event
// returns a project to draft.
func NextStatus(current Status, ev Event) Status {
	switch ev {
	case EventCommandProcessed:
		return StatusInProgress
	case EventTransformationAttached:
		return StatusCompleted
	}
	if !current.Valid() {
		return StatusDraft
	}
	return current
}
