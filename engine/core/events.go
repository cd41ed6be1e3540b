package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type EventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED  EventCode = 0x02
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Data: *MouseEvent
	EVENT_CODE_BUTTON_PRESSED  EventCode = 0x04
	EVENT_CODE_BUTTON_RELEASED EventCode = 0x05
	EVENT_CODE_MOUSE_MOVED     EventCode = 0x06
	EVENT_CODE_MOUSE_WHEEL     EventCode = 0x07
	// Resized/resolution changed from the OS. Data: *ResizeEvent
	EVENT_CODE_RESIZED EventCode = 0x08
	// An asset was reloaded from disk. Data: *AssetEvent
	EVENT_CODE_ASSET_RELOADED EventCode = 0x09

	MAX_EVENT_CODE EventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

type EventContext struct {
	Type EventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button Button
	PosX   uint16
	PosY   uint16
	Scroll int8
}

type ResizeEvent struct {
	Width  uint32
	Height uint32
}

type AssetEvent struct {
	Name string
	Kind string
}

// Should return true if handled.
type FnOnEvent func(ctx EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type eventSystemState struct {
	mu         sync.RWMutex
	registered map[EventCode][]*registeredEvent
}

var eventState *eventSystemState

func EventInitialize() bool {
	if eventState != nil {
		return false
	}
	eventState = &eventSystemState{registered: make(map[EventCode][]*registeredEvent)}
	return true
}

func EventShutdown() error {
	eventState = nil
	return nil
}

// EventRegister adds a listener for code. A listener registers at most once
// per code; a duplicate returns false.
func EventRegister(code EventCode, listener interface{}, onEvent FnOnEvent) bool {
	if eventState == nil || code < 0 || code >= MAX_MESSAGE_CODES {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	for _, e := range eventState.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	eventState.registered[code] = append(eventState.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

func EventUnregister(code EventCode, listener interface{}) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	events := eventState.registered[code]
	for i, e := range events {
		if e.listener == listener {
			eventState.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// EventFire delivers ctx to the listeners of ctx.Type in registration order
// until one of them reports it handled.
func EventFire(ctx EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.RLock()
	events := append([]*registeredEvent(nil), eventState.registered[ctx.Type]...)
	eventState.mu.RUnlock()
	for _, e := range events {
		if e.callback(ctx) {
			return true
		}
	}
	return false
}
