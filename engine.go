package rtmcvm

// Step executes exactly one instruction against ctx, mutating ctx and
// vm's shared state (global memory, RTOS bridge, HAL). It returns a
// non-nil *VmFault if the instruction faults; the caller (RunContext)
// is responsible for terminating only the offending task on a fault,
// per spec.md §7.
//
// Grounded on cpu_ie32.go's Execute() dispatch loop and on
// KTStephano-GVM/vm/vm.go's stack-pop convention (pop b then a, result
// a ⊕ b), cross-checked against original_source's literal per-opcode
// pop order.
func Step(vm *VM, ctx *Context, inst Instruction) *VmFault {
	if !inst.Op.Valid() {
		return &VmFault{Kind: FaultInvalidOpcode, PC: ctx.PC, Task: ctx.Name}
	}

	vm.diag.Trace(ctx.Name, ctx.PC)

	switch inst.Op {
	case OpNop, OpComment:
		// no-op

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor,
		OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		b, f := ctx.Pop()
		if f != nil {
			return f
		}
		a, f := ctx.Pop()
		if f != nil {
			return f
		}
		result, fault := binaryOp(inst.Op, a, b, ctx)
		if fault != nil {
			return fault
		}
		if f := ctx.Push(result); f != nil {
			return f
		}

	case OpNot:
		a, f := ctx.Pop()
		if f != nil {
			return f
		}
		if f := ctx.Push(ValueFromBool(!a.Bool())); f != nil {
			return f
		}

	case OpJump:
		ctx.PC = inst.Operands[0].Uint32()
		return nil

	case OpJumpIfTrue:
		cond, f := ctx.Pop()
		if f != nil {
			return f
		}
		if cond.Bool() {
			ctx.PC = inst.Operands[0].Uint32()
		} else {
			ctx.PC++
		}
		return nil

	case OpJumpIfFalse:
		cond, f := ctx.Pop()
		if f != nil {
			return f
		}
		if !cond.Bool() {
			ctx.PC = inst.Operands[0].Uint32()
		} else {
			ctx.PC++
		}
		return nil

	case OpCall:
		if f := ctx.PushReturn(ctx.PC + 1); f != nil {
			return f
		}
		ctx.PC = inst.Operands[0].Uint32()
		return nil

	case OpRet:
		addr, f := ctx.PopReturn()
		if f != nil {
			return f
		}
		ctx.PC = addr
		return nil

	case OpHalt:
		ctx.Running = false
		return nil

	case OpLoadConst:
		constIdx := int(inst.Operands[0].Uint32())
		var v Value
		if vm.image != nil && constIdx >= 0 && constIdx < len(vm.image.Constants) {
			v = vm.image.Constants[constIdx]
		}
		if f := ctx.Push(v); f != nil {
			return f
		}

	case OpLoadVar:
		if f := ctx.Push(vm.memory.Load(inst.Operands[0].Uint32())); f != nil {
			return f
		}

	case OpStoreVar:
		v, f := ctx.Pop()
		if f != nil {
			return f
		}
		vm.memory.Store(inst.Operands[0].Uint32(), v)

	case OpGlobalVarDeclare:
		// No-op at execution time. Load does not act on it either:
		// global memory is not initialised from the constant pool.

	case OpAllocArray:
		base, f := ctx.Pop()
		if f != nil {
			return f
		}
		n, f := ctx.Pop()
		if f != nil {
			return f
		}
		vm.memory.Zero(base.Uint32(), n.Uint32())
		if f := ctx.Push(base); f != nil {
			return f
		}

	case OpLoadArrayElem:
		index, f := ctx.Pop()
		if f != nil {
			return f
		}
		base, f := ctx.Pop()
		if f != nil {
			return f
		}
		if f := ctx.Push(vm.memory.Load(base.Uint32() + index.Uint32())); f != nil {
			return f
		}

	case OpStoreArrayElem:
		value, f := ctx.Pop()
		if f != nil {
			return f
		}
		index, f := ctx.Pop()
		if f != nil {
			return f
		}
		base, f := ctx.Pop()
		if f != nil {
			return f
		}
		vm.memory.Store(base.Uint32()+index.Uint32(), value)

	case OpLoadAddr:
		if f := ctx.Push(inst.Operands[0]); f != nil {
			return f
		}

	case OpLoadDeref:
		ptr, f := ctx.Pop()
		if f != nil {
			return f
		}
		if f := ctx.Push(vm.memory.Load(ptr.Uint32())); f != nil {
			return f
		}

	case OpStoreDeref:
		value, f := ctx.Pop()
		if f != nil {
			return f
		}
		ptr, f := ctx.Pop()
		if f != nil {
			return f
		}
		vm.memory.Store(ptr.Uint32(), value)

	case OpRtosCreateTask, OpRtosDeleteTask, OpRtosSuspendTask, OpRtosResumeTask,
		OpRtosDelayMs, OpRtosYield,
		OpRtosSemaphoreCreate, OpRtosSemaphoreTake, OpRtosSemaphoreGive,
		OpMsgDeclare, OpMsgSend, OpMsgRecv:
		if f := vm.execRtosOp(ctx, inst); f != nil {
			return f
		}

	case OpHwGpioInit, OpHwGpioSet, OpHwGpioGet,
		OpHwTimerInit, OpHwTimerStart, OpHwTimerStop, OpHwTimerSetDuty,
		OpHwAdcInit, OpHwAdcRead,
		OpHwUartWrite, OpHwSpiTransfer, OpHwI2cWrite, OpHwI2cRead:
		if f := vm.execHalOp(ctx, inst); f != nil {
			return f
		}

	case OpPrint:
		strIdx, f := ctx.Pop()
		if f != nil {
			return f
		}
		vm.diag.Debugf("%s", vm.stringAt(strIdx.Uint32()))

	case OpPrintf:
		if f := vm.execPrintf(ctx, inst); f != nil {
			return f
		}

	case OpDbgBreakpoint:
		vm.diag.Debugf("breakpoint hit: task=%s pc=%d", ctx.Name, ctx.PC)

	default:
		return &VmFault{Kind: FaultInvalidOpcode, PC: ctx.PC, Task: ctx.Name}
	}

	if !inst.Op.branches() {
		ctx.PC++
	}
	return nil
}

// binaryOp evaluates a two-operand opcode as a ⊕ b (a popped second,
// i.e. the value beneath b on the stack), per spec.md §4.2's arithmetic
// pop order.
func binaryOp(op Opcode, a, b Value, ctx *Context) (Value, *VmFault) {
	switch op {
	case OpAdd:
		return ValueFromInt32(a.Int32() + b.Int32()), nil
	case OpSub:
		return ValueFromInt32(a.Int32() - b.Int32()), nil
	case OpMul:
		return ValueFromInt32(a.Int32() * b.Int32()), nil
	case OpDiv:
		if b.Int32() == 0 {
			return 0, &VmFault{Kind: FaultDivisionByZero, PC: ctx.PC, Task: ctx.Name}
		}
		return ValueFromInt32(a.Int32() / b.Int32()), nil
	case OpMod:
		if b.Int32() == 0 {
			return 0, &VmFault{Kind: FaultDivisionByZero, PC: ctx.PC, Task: ctx.Name}
		}
		return ValueFromInt32(a.Int32() % b.Int32()), nil
	case OpAnd:
		return ValueFromUint32(a.Uint32() & b.Uint32()), nil
	case OpOr:
		return ValueFromUint32(a.Uint32() | b.Uint32()), nil
	case OpXor:
		return ValueFromUint32(a.Uint32() ^ b.Uint32()), nil
	case OpEq:
		return ValueFromBool(a == b), nil
	case OpNeq:
		return ValueFromBool(a != b), nil
	case OpLt:
		return ValueFromBool(a.Int32() < b.Int32()), nil
	case OpLte:
		return ValueFromBool(a.Int32() <= b.Int32()), nil
	case OpGt:
		return ValueFromBool(a.Int32() > b.Int32()), nil
	case OpGte:
		return ValueFromBool(a.Int32() >= b.Int32()), nil
	default:
		return 0, &VmFault{Kind: FaultInvalidOpcode, PC: ctx.PC, Task: ctx.Name}
	}
}

// RunContext drives ctx to completion, stepping instructions from img
// until the task halts, faults, or stop is signalled. It is run as the
// body of one task goroutine (see VM.createTask in controller.go).
func RunContext(vm *VM, ctx *Context, img *Image, stop <-chan struct{}) *VmFault {
	ctx.Running = true
	ctx.State = TaskRunning
	ctx.stop = stop
	for ctx.Running {
		select {
		case <-stop:
			ctx.Running = false
			return nil
		default:
		}

		if int(ctx.PC) >= len(img.Instructions) {
			ctx.Running = false
			return nil
		}
		inst := img.Instructions[ctx.PC]

		if fault := Step(vm, ctx, inst); fault != nil {
			ctx.Running = false
			ctx.State = TaskDeleted
			vm.diag.Errorf("%v", fault)
			return fault
		}
	}
	ctx.State = TaskDeleted
	return nil
}
