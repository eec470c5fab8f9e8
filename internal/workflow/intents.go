// Package workflow holds the exam and answer sheet state machines as pure functions.
// Each transition returns the next state plus the side effects the caller must carry out;
// nothing in here touches storage, clocks or the network.
package workflow

type IntentKind string

const (
	IntentPersist              IntentKind = "persist"
	IntentPublishEvent         IntentKind = "publish_event"
	IntentRecomputePerformance IntentKind = "recompute_performance"
	IntentInvalidateCache      IntentKind = "invalidate_cache"
)

// EventName identifies a domain event a transition wants published.
type EventName string

const (
	EventExamPublished      EventName = "exam.published"
	EventExamClosed         EventName = "exam.closed"
	EventAttemptStarted     EventName = "attempt.started"
	EventAttemptSubmitted   EventName = "attempt.submitted"
	EventAttemptGraded      EventName = "attempt.graded"
	EventPerformanceUpdated EventName = "performance.updated"
)

type Intent struct {
	Kind  IntentKind `json:"kind"`
	Event EventName  `json:"event,omitempty"`
}

func persist() Intent { return Intent{Kind: IntentPersist} }

func publish(name EventName) Intent { return Intent{Kind: IntentPublishEvent, Event: name} }

// Intents is the ordered list of side effects produced by a transition.
type Intents []Intent

func (in Intents) Has(kind IntentKind) bool {
	for _, i := range in {
		if i.Kind == kind {
			return true
		}
	}
	return false
}

// Events returns the event names in emission order.
func (in Intents) Events() []EventName {
	var names []EventName
	for _, i := range in {
		if i.Kind == IntentPublishEvent {
			names = append(names, i.Event)
		}
	}
	return names
}
