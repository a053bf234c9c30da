package wire

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// HandlerFunc is the callback signature for event handlers. The session
// pointer is passed as an opaque interface to avoid import cycles. A returned
// *UserError is surfaced in the ack; any other error is internal.
type HandlerFunc func(sess any, data json.RawMessage) error

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[UserState]bool
}

// Registry maps event names to handlers with state-based access control.
// It is the single gate deciding which action is legal in which state;
// handlers never re-check.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps an event name to a handler, restricted to the given states.
func (reg *Registry) Register(event string, states []UserState, fn HandlerFunc) {
	allowed := make(map[UserState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[event] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch finds the handler for the frame's event, validates the session
// state, and calls the handler. A disallowed or unknown event yields
// InvalidActionError without touching any state.
func (reg *Registry) Dispatch(sess any, state UserState, f *Frame) error {
	reg.log.Debug("收到事件",
		zap.String("event", f.Event),
		zap.Int64("id", f.ID),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[f.Event]
	if !ok {
		reg.log.Debug("未知事件", zap.String("event", f.Event), zap.String("state", state.String()))
		return ErrInvalidAction(f.Event, state)
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("事件在此狀態下不允許",
			zap.String("event", f.Event),
			zap.String("state", state.String()),
		)
		return ErrInvalidAction(f.Event, state)
	}

	return reg.safeCall(entry.fn, sess, f)
}

// safeCall executes a handler with panic recovery so a single bad frame
// cannot take down the coordinator.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, f *Frame) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.String("event", f.Event),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for event %s: %v", f.Event, rec)
		}
	}()
	return fn(sess, f.Data)
}
