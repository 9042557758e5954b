package batch

import "github.com/MechanicalMaster/Universal-Classifier/internal/domain"

// EventKind labels a progress event.
type EventKind string

const (
	EventBatchStarted  EventKind = "batch_started"
	EventUnitCompleted EventKind = "unit_completed"
	EventBatchFinished EventKind = "batch_finished"
)

// Event is one progress notification emitted while a batch runs. Consumers
// drive progress bars and logs from these.
type Event struct {
	Kind           EventKind
	BatchID        string
	TotalUnits     int
	CompletedUnits int

	// Unit fields, set for EventUnitCompleted.
	UnitID    string
	Position  int
	Succeeded bool

	// Status, set for EventBatchFinished.
	Status domain.ProcessingStatus
}

// Notifier receives progress events. A nil Notifier is allowed and ignored.
type Notifier func(Event)

func (n Notifier) emit(e Event) {
	if n != nil {
		n(e)
	}
}
