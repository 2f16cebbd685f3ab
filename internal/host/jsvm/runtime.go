package jsvm

import (
	"strings"
	"time"

	"github.com/grafana/sobek"
	"github.com/rs/zerolog"
)

// newRuntime creates a document: window, console, timers and the script
// message handlers registered so far.
func (h *Host) newRuntime() *sobek.Runtime {
	vm := sobek.New()
	global := vm.GlobalObject()
	_ = vm.Set("window", global)
	_ = vm.Set("self", global)

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "debug", "warn", "error"} {
		_ = console.Set(level, h.consoleFunc(level))
	}
	_ = vm.Set("console", console)

	_ = vm.Set("setTimeout", h.setTimeout)
	_ = vm.Set("clearTimeout", h.clearTimeout)

	webkit := vm.NewObject()
	_ = webkit.Set("messageHandlers", vm.NewObject())
	_ = vm.Set("webkit", webkit)

	h.mu.Lock()
	names := make([]string, 0, len(h.handlers))
	for name := range h.handlers {
		names = append(names, name)
	}
	h.mu.Unlock()
	for _, name := range names {
		h.installMessageHandler(vm, name)
	}
	return vm
}

func (h *Host) installMessageHandler(vm *sobek.Runtime, name string) {
	handlers := vm.GlobalObject().Get("webkit").ToObject(vm).Get("messageHandlers").ToObject(vm)
	handler := vm.NewObject()
	_ = handler.Set("postMessage", func(call sobek.FunctionCall) sobek.Value {
		h.postMessage(name, call.Argument(0).String())
		return sobek.Undefined()
	})
	_ = handlers.Set(name, handler)
}

func (h *Host) consoleFunc(level string) func(sobek.FunctionCall) sobek.Value {
	return func(call sobek.FunctionCall) sobek.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		lvl := zerolog.InfoLevel
		switch level {
		case "debug":
			lvl = zerolog.DebugLevel
		case "warn":
			lvl = zerolog.WarnLevel
		case "error":
			lvl = zerolog.ErrorLevel
		}
		h.log.WithLevel(lvl).Str("source", "console").Str("url", h.url).Msg(strings.Join(parts, " "))
		return sobek.Undefined()
	}
}

func (h *Host) setTimeout(call sobek.FunctionCall) sobek.Value {
	fn, ok := sobek.AssertFunction(call.Argument(0))
	if !ok {
		return sobek.Undefined()
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	vm := h.vm

	h.timerID++
	id := h.timerID
	h.timers.Add(1)

	var fired bool
	timer := time.AfterFunc(delay, func() {
		h.Dispatch(func() {
			if _, live := h.pending[id]; !live {
				return
			}
			delete(h.pending, id)
			fired = true
			h.timers.Add(-1)
			if h.vm != vm {
				return
			}
			if _, err := fn(sobek.Undefined()); err != nil {
				h.log.Warn().Err(err).Msg("timer callback failed")
			}
		})
	})
	h.pending[id] = func() bool {
		if fired {
			return false
		}
		timer.Stop()
		h.timers.Add(-1)
		return true
	}
	return vm.ToValue(id)
}

func (h *Host) clearTimeout(call sobek.FunctionCall) sobek.Value {
	id := int(call.Argument(0).ToInteger())
	if cancel, ok := h.pending[id]; ok {
		delete(h.pending, id)
		cancel()
	}
	return sobek.Undefined()
}

// cancelTimers drops the timers of the document being replaced.
func (h *Host) cancelTimers() {
	for id, cancel := range h.pending {
		delete(h.pending, id)
		cancel()
	}
}
