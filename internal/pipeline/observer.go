package pipeline

import "time"

// EventType classifies progress notifications.
type EventType string

const (
	EventRunStarted          EventType = "run_started"
	EventStageStarted        EventType = "stage_started"
	EventStageCompleted      EventType = "stage_completed"
	EventStageFailed         EventType = "stage_failed"
	EventStageCanceled       EventType = "stage_canceled"
	EventCheckpointSaved     EventType = "checkpoint_saved"
	EventCheckpointDiscarded EventType = "checkpoint_discarded"
	EventRunCompleted        EventType = "run_completed"
	EventNoChanges           EventType = "no_changes"
)

// Event is a progress notification emitted by the orchestrator.
type Event struct {
	Type    EventType
	Session SessionKey
	Stage   Stage
	Message string
	Err     error
	Time    time.Time
}

// Observer receives progress events. Implementations must not block.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// NopObserver discards events.
type NopObserver struct{}

func (NopObserver) Notify(Event) {}

type channelObserver struct {
	ch chan<- Event
}

// ChannelObserver forwards events to ch, dropping any event the receiver is
// not ready for.
func ChannelObserver(ch chan<- Event) Observer {
	return channelObserver{ch: ch}
}

func (o channelObserver) Notify(e Event) {
	select {
	case o.ch <- e:
	default:
	}
}
