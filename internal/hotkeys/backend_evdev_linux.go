//go:build linux

package hotkeys

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"app-activate/internal/keyspec"
)

const (
	evKey = 1

	evdevReleased = 0
	evdevPressed  = 1

	// sizeof(struct input_event) on 64-bit Linux.
	inputEventSize = 24
)

// evdevCodes maps canonical code names onto linux/input-event-codes.h values.
var evdevCodes = func() map[string]uint16 {
	codes := map[string]uint16{
		"escape":       1,
		"minus":        12,
		"equal":        13,
		"backspace":    14,
		"tab":          15,
		"bracketleft":  26,
		"bracketright": 27,
		"enter":        28,
		"semicolon":    39,
		"quote":        40,
		"backquote":    41,
		"backslash":    43,
		"comma":        51,
		"period":       52,
		"slash":        53,
		"space":        57,
		"capslock":     58,
		"home":         102,
		"arrowup":      103,
		"pageup":       104,
		"arrowleft":    105,
		"arrowright":   106,
		"end":          107,
		"arrowdown":    108,
		"pagedown":     109,
		"insert":       110,
		"delete":       111,
	}
	letters := []uint16{
		30, 48, 46, 32, 18, 33, 34, 35, 23, 36, 37, 38, 50, // a..m
		49, 24, 25, 16, 19, 31, 20, 22, 47, 17, 45, 21, 44, // n..z
	}
	for i, name := range letterCodes() {
		codes[name] = letters[i]
	}
	digits := []uint16{11, 2, 3, 4, 5, 6, 7, 8, 9, 10} // 0..9
	for i, name := range digitCodes() {
		codes[name] = digits[i]
	}
	for n := 1; n <= 10; n++ {
		codes[functionCode(n)] = uint16(58 + n)
	}
	codes[functionCode(11)] = 87
	codes[functionCode(12)] = 88
	for n := 13; n <= 20; n++ {
		codes[functionCode(n)] = uint16(170 + n)
	}
	return codes
}()

// openKeyboardDeviceFn is a test seam.
var openKeyboardDeviceFn = openKeyboardDevice

// evdevBackend reads raw key events from a keyboard device. Registration
// only filters which codes are reported; nothing is grabbed.
type evdevBackend struct {
	mu      sync.Mutex
	byCode  map[uint16][]ID
	device  io.ReadCloser
	emit    func(Event)
	fail    func(error)
	started bool
	done    chan struct{}
}

func newEvdevBackend() (backend, error) {
	return &evdevBackend{
		byCode: map[uint16][]ID{},
		done:   make(chan struct{}),
	}, nil
}

func (b *evdevBackend) onFailure(fail func(error)) {
	b.mu.Lock()
	b.fail = fail
	b.mu.Unlock()
}

func (b *evdevBackend) known(spec keyspec.Spec) bool {
	_, ok := evdevCodes[canonicalCode(spec)]
	return ok
}

func (b *evdevBackend) register(id ID, spec keyspec.Spec, emit func(Event)) error {
	code, ok := evdevCodes[canonicalCode(spec)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, spec)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		device, err := openKeyboardDeviceFn()
		if err != nil {
			return err
		}
		b.device = device
		b.emit = emit
		b.started = true
		go b.readLoop(device)
	}
	b.byCode[code] = append(b.byCode[code], id)
	return nil
}

func (b *evdevBackend) unregister(id ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for code, ids := range b.byCode {
		for i, candidate := range ids {
			if candidate != id {
				continue
			}
			ids = append(ids[:i], ids[i+1:]...)
			if len(ids) == 0 {
				delete(b.byCode, code)
			} else {
				b.byCode[code] = ids
			}
			return nil
		}
	}
	return fmt.Errorf("%w: id=%d", ErrNotRegistered, id)
}

func (b *evdevBackend) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil
	}
	b.started = false
	close(b.done)
	return b.device.Close()
}

func (b *evdevBackend) readLoop(device io.Reader) {
	buf := make([]byte, inputEventSize)
	for {
		if _, err := io.ReadFull(device, buf); err != nil {
			select {
			case <-b.done:
			default:
				b.mu.Lock()
				fail := b.fail
				b.mu.Unlock()
				if fail != nil {
					fail(fmt.Errorf("evdev read: %w", err))
				} else {
					slog.Error("[hotkey] evdev read failed, key capture stopped", "error", err)
				}
			}
			return
		}
		b.dispatch(buf)
	}
}

// dispatch decodes one struct input_event and emits it for matching IDs.
// Auto-repeat (value 2) is ignored.
func (b *evdevBackend) dispatch(raw []byte) {
	evType := binary.LittleEndian.Uint16(raw[16:18])
	code := binary.LittleEndian.Uint16(raw[18:20])
	value := int32(binary.LittleEndian.Uint32(raw[20:24]))
	if evType != evKey {
		return
	}

	var state State
	switch value {
	case evdevPressed:
		state = Pressed
	case evdevReleased:
		state = Released
	default:
		return
	}

	b.mu.Lock()
	ids := append([]ID(nil), b.byCode[code]...)
	emit := b.emit
	b.mu.Unlock()

	for _, id := range ids {
		emit(Event{ID: id, State: state})
	}
}

func openKeyboardDevice() (io.ReadCloser, error) {
	path, err := findKeyboardDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to find keyboard device: %w", err)
	}
	device, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyboard device %s: %w (add the user to the 'input' group)", path, err)
	}
	slog.Info("[hotkey] evdev capture started", "device", path)
	return device, nil
}

// findKeyboardDevice prefers /dev/input/by-id names, then the handler list in
// /proc/bus/input/devices.
func findKeyboardDevice() (string, error) {
	const byIDPath = "/dev/input/by-id"
	if entries, err := os.ReadDir(byIDPath); err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasSuffix(name, "-event-kbd") {
				return filepath.Join(byIDPath, name), nil
			}
		}
	}

	devices, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return "", err
	}
	defer devices.Close()
	return parseKeyboardHandler(devices)
}

func parseKeyboardHandler(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	isKeyboard := false
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "N: Name="):
			name := strings.ToLower(line)
			isKeyboard = strings.Contains(name, "keyboard") || strings.Contains(name, "kbd")
		case strings.HasPrefix(line, "H: Handlers=") && isKeyboard:
			for _, part := range strings.Fields(line) {
				if strings.HasPrefix(part, "event") {
					return "/dev/input/" + part, nil
				}
			}
		case line == "":
			isKeyboard = false
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no keyboard device listed in /proc/bus/input/devices")
}
