package topology

import (
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"

	"github.com/nerrad567/fieldlogger/internal/reading"
)

// Script runs a JavaScript transform(data) function over the inbound
// mapping; the returned object is the outbound mapping.
//
// Settings:
//
//	template:    path template (default empty)
//	source:      inline script
//	source_file: path to a script file, used when source is empty
type Script struct {
	template string

	mu        sync.Mutex
	vm        *goja.Runtime
	transform goja.Callable
}

// NewScript compiles the script and resolves its transform function.
func NewScript(settings Settings) (*Script, error) {
	src := settings.string("source", "")
	if src == "" {
		path := settings.string("source_file", "")
		if path == "" {
			return nil, fmt.Errorf("%w: script needs source or source_file", ErrInvalidSettings)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading script %s: %w", path, err)
		}
		src = string(data)
	}

	vm := goja.New()
	if _, err := vm.RunString(src); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	fn, ok := goja.AssertFunction(vm.Get("transform"))
	if !ok {
		return nil, fmt.Errorf("%w: transform is not a function", ErrScript)
	}

	return &Script{
		template:  settings.string("template", ""),
		vm:        vm,
		transform: fn,
	}, nil
}

// Name implements Topology.
func (*Script) Name() string { return NameScript }

// Template implements Topology.
func (s *Script) Template() string { return s.template }

// Encode implements Topology. The runtime is not goroutine safe, so calls
// are serialized.
func (s *Script) Encode(in reading.Fields) (out reading.Fields, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrScript, p)
		}
	}()

	arg := s.vm.ToValue(map[string]any(in.Clone()))
	res, err := s.transform(goja.Undefined(), arg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}

	exported, ok := res.Export().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: transform returned %T, want an object", ErrScript, res.Export())
	}
	return reading.Fields(exported), nil
}
