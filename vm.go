package rtmcvm

import (
	"sync"
)

// VmState is the VM Controller's lifecycle state (spec.md §4.6).
type VmState int

const (
	StateCreated VmState = iota
	StateLoaded
	StateRunning
	StateStopped
	StateDestroyed
)

func (s VmState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// taskSlot is one entry in the VM's task table: the execution context
// plus the goroutineKernel cancel func that owns its goroutine. Held by
// index (not pointer-to-pointer) from Context, per spec.md §9.
type taskSlot struct {
	ctx    *Context
	cancel func()
}

// VM is the root object: global memory, the loaded program image, the
// task table, the RTOS/HAL bridges, and diagnostics. One VM corresponds
// to one "VM instance" in spec.md's VM Controller section.
//
// Grounded on program_executor.go/coprocessor_manager.go's session-
// counter idiom: Stop/Destroy bump session so stale goroutines from a
// previous Run can detect they no longer own the VM's state.
type VM struct {
	mu sync.Mutex

	state   VmState
	session uint32

	image  *Image
	memory GlobalMemory
	kernel Kernel
	hal    PeripheralDriver
	diag   *Diagnostics

	tasks      []*taskSlot
	semaphores map[uint32]bool // allocated handles, for Status()
	queues     map[uint32]bool
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithKernel overrides the default goroutine-based Kernel, e.g. to
// attach a real RTOS bridge.
func WithKernel(k Kernel) Option { return func(vm *VM) { vm.kernel = k } }

// WithPeripheralDriver overrides the default in-memory simulated
// PeripheralDriver, e.g. to attach a real board driver.
func WithPeripheralDriver(p PeripheralDriver) Option { return func(vm *VM) { vm.hal = p } }

// WithDiagnostics overrides the default (discarding) Diagnostics sink.
func WithDiagnostics(d *Diagnostics) Option { return func(vm *VM) { vm.diag = d } }

// NewVM constructs a VM in the Created state.
func NewVM(opts ...Option) *VM {
	vm := &VM{
		state:      StateCreated,
		kernel:     NewGoroutineKernel(),
		hal:        NewSimDriver(),
		diag:       NewDiagnostics(nil),
		semaphores: make(map[uint32]bool),
		queues:     make(map[uint32]bool),
	}
	for _, o := range opts {
		o(vm)
	}
	return vm
}

// State returns the VM's current lifecycle state.
func (vm *VM) State() VmState {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}
