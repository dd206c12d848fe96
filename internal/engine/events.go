package engine

import "medgame/internal/session"

// Event is a notification for the presentation layer. The concrete types
// below are the only implementations.
type Event interface {
	event()
}

// MessageAppended fires when a turn joins the local transcript. Count is the
// transcript length after the append.
type MessageAppended struct {
	Turn  session.Turn
	Count int
}

// TypingChanged fires when the patient starts or stops "typing", i.e. while
// a network call is in flight.
type TypingChanged struct {
	Typing bool
}

// GuardrailRejected fires when a doctor message was refused. Text is the
// message that was retracted from the transcript.
type GuardrailRejected struct {
	Text   string
	Reason string
}

// EvaluatingChanged brackets the diagnosis call
type EvaluatingChanged struct {
	Evaluating bool
}

// Finished carries the outcome of a consultation
type Finished struct {
	Result Result
}

// ErrorOccurred reports a failed operation. Retracted is set when a doctor
// turn was removed from the transcript because of the failure.
type ErrorOccurred struct {
	Op        string
	Err       error
	Retracted bool
}

func (MessageAppended) event()   {}
func (TypingChanged) event()     {}
func (GuardrailRejected) event() {}
func (EvaluatingChanged) event() {}
func (Finished) event()          {}
func (ErrorOccurred) event()     {}

const subscriberBuffer = 64

// Subscribe returns a channel receiving every subsequent event. Delivery never
// blocks the engine: events are dropped for a subscriber whose buffer is full.
func (e *Engine) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	if e.closed {
		close(ch)
		return ch
	}
	e.subs = append(e.subs, ch)
	return ch
}

// Close closes every subscriber channel. Later events are discarded.
func (e *Engine) Close() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, ch := range e.subs {
		close(ch)
	}
	e.subs = nil
}

func (e *Engine) emit(ev Event) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
