package rtmcvm

import (
	"strconv"
	"time"
)

// execRtosOp dispatches the RTOS bridge opcodes against vm.kernel,
// mutating ctx's operand stack with whatever result value (if any) the
// opcode pushes. Operand pop orders below are grounded on
// original_source/.../rtmc_interpreter.c's literal implementation of
// each opcode, not guessed.
func (vm *VM) execRtosOp(ctx *Context, inst Instruction) *VmFault {
	switch inst.Op {
	case OpRtosCreateTask:
		// Pop order: func_addr, task_id, priority, core, stack_size.
		funcAddr, f := ctx.Pop()
		if f != nil {
			return f
		}
		taskID, f := ctx.Pop()
		if f != nil {
			return f
		}
		_, f = ctx.Pop() // priority: recorded by the real scheduler, unused here
		if f != nil {
			return f
		}
		core, f := ctx.Pop()
		if f != nil {
			return f
		}
		_, f = ctx.Pop() // stack_size: sizing concern for a real RTOS, not this VM
		if f != nil {
			return f
		}

		ok := vm.createTask(taskIDName(taskID.Uint32()), funcAddr.Uint32(), int(core.Int32()))
		return ctx.Push(ValueFromBool(ok))

	case OpRtosDeleteTask:
		taskID, f := ctx.Pop()
		if f != nil {
			return f
		}
		vm.deleteTask(taskIDName(taskID.Uint32()))

	case OpRtosSuspendTask:
		taskID, f := ctx.Pop()
		if f != nil {
			return f
		}
		vm.setTaskState(taskIDName(taskID.Uint32()), TaskSuspended)

	case OpRtosResumeTask:
		taskID, f := ctx.Pop()
		if f != nil {
			return f
		}
		vm.setTaskState(taskIDName(taskID.Uint32()), TaskReady)

	case OpRtosDelayMs:
		ms, f := ctx.Pop()
		if f != nil {
			return f
		}
		vm.kernel.Sleep(vm.taskStopChan(ctx), msDuration(ms.Uint32()))

	case OpRtosYield:
		vm.kernel.Sleep(vm.taskStopChan(ctx), 0)

	case OpRtosSemaphoreCreate:
		handle, err := vm.kernel.SemaphoreCreate()
		if err != nil {
			return ctx.Push(0)
		}
		vm.mu.Lock()
		vm.semaphores[handle] = true
		vm.mu.Unlock()
		return ctx.Push(ValueFromUint32(handle))

	case OpRtosSemaphoreTake:
		// Pop order: timeout, then handle.
		timeout, f := ctx.Pop()
		if f != nil {
			return f
		}
		handle, f := ctx.Pop()
		if f != nil {
			return f
		}
		ok, err := vm.kernel.SemaphoreTake(handle.Uint32(), timeout.Int32())
		if err != nil {
			ok = false
		}
		return ctx.Push(ValueFromBool(ok))

	case OpRtosSemaphoreGive:
		handle, f := ctx.Pop()
		if f != nil {
			return f
		}
		vm.kernel.SemaphoreGive(handle.Uint32())

	case OpMsgDeclare:
		// Resolved at Load time when walking the image; no-op here.

	case OpMsgSend:
		// Pop order: timeout, message, handle.
		timeout, f := ctx.Pop()
		if f != nil {
			return f
		}
		msg, f := ctx.Pop()
		if f != nil {
			return f
		}
		handle, f := ctx.Pop()
		if f != nil {
			return f
		}
		ok, err := vm.kernel.QueueSend(handle.Uint32(), msg, timeout.Int32())
		if err != nil {
			ok = false
		}
		return ctx.Push(ValueFromBool(ok))

	case OpMsgRecv:
		// Pop order: timeout, handle.
		timeout, f := ctx.Pop()
		if f != nil {
			return f
		}
		handle, f := ctx.Pop()
		if f != nil {
			return f
		}
		msg, ok, err := vm.kernel.QueueRecv(handle.Uint32(), timeout.Int32())
		if err != nil {
			ok = false
		}
		if f := ctx.Push(msg); f != nil {
			return f
		}
		return ctx.Push(ValueFromBool(ok))
	}
	return nil
}

func taskIDName(id uint32) string {
	return "task#" + strconv.Itoa(int(id))
}

func msDuration(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
