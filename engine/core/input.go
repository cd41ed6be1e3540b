package core

import "sync"

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// KeyCode values follow the Win32 virtual key table. Digits and letters
// equal their ASCII code so the platform can pass them through.
type KeyCode uint16

const (
	KEY_BACKSPACE KeyCode = 0x08
	KEY_TAB       KeyCode = 0x09
	KEY_ENTER     KeyCode = 0x0D
	KEY_SHIFT     KeyCode = 0x10
	KEY_PAUSE     KeyCode = 0x13
	KEY_CAPITAL   KeyCode = 0x14
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_PRIOR     KeyCode = 0x21
	KEY_NEXT      KeyCode = 0x22
	KEY_END       KeyCode = 0x23
	KEY_HOME      KeyCode = 0x24
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_PRINT     KeyCode = 0x2A
)

const (
	KEY_0 KeyCode = 0x30 + iota
	KEY_1
	KEY_2
	KEY_3
	KEY_4
	KEY_5
	KEY_6
	KEY_7
	KEY_8
	KEY_9
)

const (
	KEY_A KeyCode = 0x41 + iota
	KEY_B
	KEY_C
	KEY_D
	KEY_E
	KEY_F
	KEY_G
	KEY_H
	KEY_I
	KEY_J
	KEY_K
	KEY_L
	KEY_M
	KEY_N
	KEY_O
	KEY_P
	KEY_Q
	KEY_R
	KEY_S
	KEY_T
	KEY_U
	KEY_V
	KEY_W
	KEY_X
	KEY_Y
	KEY_Z
)

const (
	KEY_LCONTROL  KeyCode = 0xA2
	KEY_RCONTROL  KeyCode = 0xA3
	KEY_LMENU     KeyCode = 0xA4
	KEY_RMENU     KeyCode = 0xA5
	KEY_SEMICOLON KeyCode = 0xBA
	KEY_PLUS      KeyCode = 0xBB
	KEY_COMMA     KeyCode = 0xBC
	KEY_MINUS     KeyCode = 0xBD
	KEY_PERIOD    KeyCode = 0xBE
	KEY_SLASH     KeyCode = 0xBF
	KEY_GRAVE     KeyCode = 0xC0

	KEYS_MAX_KEYS KeyCode = 0xFF
)

// inputFrame is everything input knows at one point of a frame.
type inputFrame struct {
	keys    [KEYS_MAX_KEYS]bool
	buttons [BUTTON_MAX_BUTTONS]bool
	x, y    uint16
	wheel   int8
}

// inputState holds the live state and a snapshot taken at the end of the
// previous frame, so callers can see edges.
type inputState struct {
	current  inputFrame
	previous inputFrame
}

var onceInput sync.Once
var inputInitialized bool = false
var input *inputState = nil

func InputInitialize() error {
	onceInput.Do(func() {
		input = &inputState{}
	})
	inputInitialized = true
	LogInfo("Input subsystem initialized.")
	return nil
}

func InputShutdown() error {
	inputInitialized = false
	return nil
}

// InputUpdate closes the frame: the live state becomes the previous one and
// the accumulated wheel is cleared.
func InputUpdate(deltaTime float64) error {
	if !inputInitialized {
		return nil
	}
	input.previous = input.current
	input.current.wheel = 0
	return nil
}

func InputIsKeyDown(key KeyCode) bool {
	return inputInitialized && key < KEYS_MAX_KEYS && input.current.keys[key]
}

func InputIsKeyUp(key KeyCode) bool {
	return inputInitialized && key < KEYS_MAX_KEYS && !input.current.keys[key]
}

func InputWasKeyDown(key KeyCode) bool {
	return inputInitialized && key < KEYS_MAX_KEYS && input.previous.keys[key]
}

func InputWasKeyUp(key KeyCode) bool {
	return inputInitialized && key < KEYS_MAX_KEYS && !input.previous.keys[key]
}

// InputProcessKey records a key transition and fires KEY_PRESSED or
// KEY_RELEASED. Repeats of the same state fire nothing.
func InputProcessKey(key KeyCode, pressed bool) error {
	if !inputInitialized || key >= KEYS_MAX_KEYS {
		return nil
	}
	if input.current.keys[key] == pressed {
		return nil
	}
	input.current.keys[key] = pressed

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	EventFire(EventContext{Type: code, Data: &KeyEvent{KeyCode: key}})
	return nil
}

func InputIsButtonDown(button Button) bool {
	return inputInitialized && button < BUTTON_MAX_BUTTONS && input.current.buttons[button]
}

func InputIsButtonUp(button Button) bool {
	return inputInitialized && button < BUTTON_MAX_BUTTONS && !input.current.buttons[button]
}

func InputWasButtonDown(button Button) bool {
	return inputInitialized && button < BUTTON_MAX_BUTTONS && input.previous.buttons[button]
}

func InputWasButtonUp(button Button) bool {
	return inputInitialized && button < BUTTON_MAX_BUTTONS && !input.previous.buttons[button]
}

func InputGetMousePosition() (int32, int32) {
	if !inputInitialized {
		return 0, 0
	}
	return int32(input.current.x), int32(input.current.y)
}

func InputGetPreviousMousePosition() (int32, int32) {
	if !inputInitialized {
		return 0, 0
	}
	return int32(input.previous.x), int32(input.previous.y)
}

// InputGetMouseDelta is how far the cursor moved since the last InputUpdate.
func InputGetMouseDelta() (int32, int32) {
	x, y := InputGetMousePosition()
	px, py := InputGetPreviousMousePosition()
	return x - px, y - py
}

// InputGetMouseWheel is the wheel movement accumulated this frame.
func InputGetMouseWheel() int8 {
	if !inputInitialized {
		return 0
	}
	return input.current.wheel
}

func InputProcessButton(button Button, pressed bool) error {
	if !inputInitialized || button >= BUTTON_MAX_BUTTONS {
		return nil
	}
	if input.current.buttons[button] == pressed {
		return nil
	}
	input.current.buttons[button] = pressed

	code := EVENT_CODE_BUTTON_RELEASED
	if pressed {
		code = EVENT_CODE_BUTTON_PRESSED
	}
	EventFire(EventContext{Type: code, Data: &MouseEvent{Button: button}})
	return nil
}

func InputProcessMouseMove(x uint16, y uint16) error {
	if !inputInitialized {
		return nil
	}
	if input.current.x == x && input.current.y == y {
		return nil
	}
	input.current.x, input.current.y = x, y
	EventFire(EventContext{
		Type: EVENT_CODE_MOUSE_MOVED,
		Data: &MouseEvent{PosX: x, PosY: y},
	})
	return nil
}

func InputProcessMouseWheel(zDelta int8) error {
	if !inputInitialized {
		return nil
	}
	input.current.wheel += zDelta
	EventFire(EventContext{
		Type: EVENT_CODE_MOUSE_WHEEL,
		Data: &MouseEvent{Scroll: zDelta},
	})
	return nil
}
