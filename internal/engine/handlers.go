package engine

// Event names that gate stability. While a handler is pending under any of
// these names the conductor is not stable, even when stopped.
const (
	EventMove      = "move"
	EventTrans     = "trans"
	EventFrameAnim = "frameanim"
	EventSoundStop = "soundstop"
	EventSoundFade = "soundfade"
)

// blockingEvents is the fixed set checked by IsStable, in check order.
var blockingEvents = [...]string{EventMove, EventTrans, EventFrameAnim, EventSoundStop, EventSoundFade}

// BlockingEvents returns the event names that gate stability.
func BlockingEvents() []string {
	out := make([]string, len(blockingEvents))
	copy(out, blockingEvents[:])
	return out
}

// EventHandler is a one-shot callback waiting for an asynchronous effect
// (an animation finishing, a sound stopping) to report completion.
//
// Handlers are compared by pointer identity, so keep the *EventHandler
// returned by NewEventHandler if it may need to be cleared individually.
type EventHandler struct {
	eventName string
	fire      func()
}

// NewEventHandler creates a handler for eventName. fire may be nil.
func NewEventHandler(eventName string, fire func()) *EventHandler {
	return &EventHandler{eventName: eventName, fire: fire}
}

// EventName returns the event this handler waits for.
func (h *EventHandler) EventName() string {
	return h.eventName
}

// Fire invokes the callback.
func (h *EventHandler) Fire() {
	if h.fire != nil {
		h.fire()
	}
}

// HandlerRegistry holds pending event handlers keyed by event name.
// Handlers under one name fire in insertion order.
//
// Not safe for concurrent use: it belongs to a single conductor and is only
// touched from the goroutine that drives it.
type HandlerRegistry struct {
	handlers map[string][]*EventHandler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string][]*EventHandler)}
}

// Add appends h to the list for its event name.
func (r *HandlerRegistry) Add(h *EventHandler) {
	if h == nil {
		return
	}
	r.handlers[h.eventName] = append(r.handlers[h.eventName], h)
}

// Has reports whether at least one handler is pending for eventName.
func (r *HandlerRegistry) Has(eventName string) bool {
	return len(r.handlers[eventName]) > 0
}

// Len returns the number of pending handlers for eventName.
func (r *HandlerRegistry) Len(eventName string) int {
	return len(r.handlers[eventName])
}

// Trigger fires and removes every handler pending for eventName.
//
// The list is detached before any callback runs, so a callback that
// registers a new handler under the same name adds it for the next
// trigger instead of being fired in this wave.
// Returns true if at least one handler existed.
func (r *HandlerRegistry) Trigger(eventName string) bool {
	pending := r.handlers[eventName]
	if len(pending) == 0 {
		return false
	}
	delete(r.handlers, eventName)
	for _, h := range pending {
		h.Fire()
	}
	return true
}

// ClearAll removes every pending handler without firing.
func (r *HandlerRegistry) ClearAll() {
	r.handlers = make(map[string][]*EventHandler)
}

// Clear removes h (by identity) without firing it.
func (r *HandlerRegistry) Clear(h *EventHandler) {
	if h == nil {
		return
	}
	list := r.handlers[h.eventName]
	for i, candidate := range list {
		if candidate != h {
			continue
		}
		rest := make([]*EventHandler, 0, len(list)-1)
		rest = append(rest, list[:i]...)
		rest = append(rest, list[i+1:]...)
		if len(rest) == 0 {
			delete(r.handlers, h.eventName)
		} else {
			r.handlers[h.eventName] = rest
		}
		return
	}
}

// ClearByName removes every handler pending for eventName without firing.
func (r *HandlerRegistry) ClearByName(eventName string) {
	delete(r.handlers, eventName)
}

// anyBlocking reports whether a handler is pending under a blocking event name.
func (r *HandlerRegistry) anyBlocking() bool {
	for _, name := range blockingEvents {
		if r.Has(name) {
			return true
		}
	}
	return false
}
