package rtmcvm

import (
	"errors"
	"runtime"
)

// ErrWrongState is returned when a VM Controller entry point is called
// from a lifecycle state it does not support (spec.md §4.6).
var ErrWrongState = errors.New("rtmcvm: operation not valid in current state")

// Status is the snapshot returned by VM.Status(), matching the fields
// the original firmware's UART STATUS shell command reports
// (xPortGetFreeHeapSize, uxTaskGetNumberOfTasks) plus the image's table
// occupancy.
type Status struct {
	State          VmState
	TaskCount      int
	SemaphoreCount int
	QueueCount     int
	FreeHeapBytes  uint64

	Instructions int
	Constants    int
	Strings      int
	Functions    int
	Symbols      int
}

// Load installs img (rejecting an image with no instructions) and walks
// it once, creating a message queue for every MSG_DECLARE. It creates no
// task: Run looks up "main" and spawns the bootstrap task. Load is only
// valid from Created.
func (vm *VM) Load(img *Image) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.state != StateCreated {
		return ErrWrongState
	}
	if len(img.Instructions) == 0 {
		return &ImageInvalid{Reason: ReasonTruncated, Detail: "no instructions"}
	}

	vm.image = img
	vm.state = StateLoaded

	// Walk the image once for MSG_DECLARE, which pre-creates its queue
	// so Status() reports it even before any task has sent or received
	// on it. GLOBAL_VAR_DECLARE instructions are skipped: no global
	// memory cell is initialised from the constant pool, so global
	// memory starts all zero.
	for _, inst := range img.Instructions {
		if inst.Op == OpMsgDeclare {
			if handle, err := vm.kernel.QueueCreate(); err == nil {
				vm.queues[handle] = true
			}
		}
	}
	return nil
}

// Run transitions Loaded→Running, spawning the bootstrap task (and any
// tasks the bootstrap task itself creates via RTOS_CREATE_TASK while
// running). Run is only valid from Loaded.
func (vm *VM) Run() error {
	vm.mu.Lock()
	if vm.state != StateLoaded {
		vm.mu.Unlock()
		return ErrWrongState
	}
	vm.session++
	vm.state = StateRunning
	img := vm.image
	vm.mu.Unlock()

	if addr, ok := img.FuncAddr("main"); ok {
		vm.createTask("main", addr, 0)
	} else {
		vm.diag.Debugf("no main function in image; VM running with no bootstrap task")
	}
	return nil
}

// Stop halts every running task and transitions to Stopped. It is safe
// to call from Running or Loaded (a no-op from Loaded beyond the state
// change). Grounded on coprocessor_manager.go's StopAll: signal every
// worker to stop, then wait with a bound per worker.
func (vm *VM) Stop() error {
	vm.mu.Lock()
	if vm.state != StateRunning && vm.state != StateLoaded {
		vm.mu.Unlock()
		return ErrWrongState
	}
	vm.session++ // invalidate any in-flight async completions
	slots := append([]*taskSlot(nil), vm.tasks...)
	vm.state = StateStopped
	vm.mu.Unlock()

	for _, slot := range slots {
		if slot.cancel != nil {
			slot.cancel()
		}
	}
	return nil
}

// Destroy releases all VM resources. Valid from any state except
// already-Destroyed; it implicitly stops a running VM first.
func (vm *VM) Destroy() error {
	vm.mu.Lock()
	if vm.state == StateDestroyed {
		vm.mu.Unlock()
		return ErrWrongState
	}
	vm.mu.Unlock()

	if vm.State() == StateRunning {
		_ = vm.Stop()
	}

	vm.mu.Lock()
	vm.tasks = nil
	vm.semaphores = make(map[uint32]bool)
	vm.queues = make(map[uint32]bool)
	vm.state = StateDestroyed
	vm.mu.Unlock()
	return nil
}

// Status returns a point-in-time snapshot of the VM's resource usage.
func (vm *VM) Status() Status {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	st := Status{
		State:          vm.state,
		TaskCount:      len(vm.tasks),
		SemaphoreCount: len(vm.semaphores),
		QueueCount:     len(vm.queues),
		FreeHeapBytes:  freeHeapApprox(),
	}
	if vm.image != nil {
		st.Instructions = len(vm.image.Instructions)
		st.Constants = len(vm.image.Constants)
		st.Strings = len(vm.image.Strings)
		st.Functions = len(vm.image.Functions)
		st.Symbols = len(vm.image.Symbols)
	}
	return st
}

func freeHeapApprox() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Sys < m.Alloc {
		return 0
	}
	return m.Sys - m.Alloc
}

// createTask spawns a new task running from entry on the given core.
// Grounded on program_executor.go's prepareAndLaunch (type-switch then
// `go cpu.Execute()`) and on the session-staleness guard that keeps a
// task that outlives a Stop()/Destroy() from mutating VM state it no
// longer owns.
func (vm *VM) createTask(name string, entry uint32, core int) bool {
	vm.mu.Lock()
	if vm.state != StateRunning {
		vm.mu.Unlock()
		return false
	}
	if len(vm.tasks) >= MaxTasks {
		vm.mu.Unlock()
		vm.diag.Errorf("%v", &ResourceExhausted{Kind: ResourceTask})
		return false
	}
	session := vm.session
	img := vm.image
	taskID := len(vm.tasks)
	ctx := newContext(vm, taskID, name, entry, core)
	slot := &taskSlot{ctx: ctx}
	vm.tasks = append(vm.tasks, slot)
	vm.mu.Unlock()

	cancel, err := vm.kernel.SpawnTask(core, func(stop <-chan struct{}) {
		RunContext(vm, ctx, img, stop)

		vm.mu.Lock()
		stale := session != vm.session
		vm.mu.Unlock()
		if !stale {
			vm.diag.Debugf("task %q finished", ctx.Name)
		}
	})
	if err != nil {
		vm.diag.Errorf("%v", &KernelFault{Op: OpRtosCreateTask, Err: err})
		return false
	}

	vm.mu.Lock()
	slot.cancel = cancel
	vm.mu.Unlock()
	return true
}

func (vm *VM) deleteTask(name string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, slot := range vm.tasks {
		if slot.ctx.Name == name {
			slot.ctx.State = TaskDeleted
			slot.ctx.Running = false
		}
	}
}

func (vm *VM) setTaskState(name string, state TaskState) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, slot := range vm.tasks {
		if slot.ctx.Name == name {
			slot.ctx.State = state
		}
	}
}

// taskStopChan returns the stop channel the kernel gave ctx's task when
// it was spawned, so RTOS_YIELD/RTOS_DELAY_MS honor a concurrent
// Stop()/Destroy() instead of sleeping past it.
func (vm *VM) taskStopChan(ctx *Context) <-chan struct{} {
	if ctx.stop != nil {
		return ctx.stop
	}
	return make(chan struct{})
}
