package rtmcvm

// execHalOp dispatches the hardware-abstraction opcodes against
// vm.hal. Operand pop orders are grounded on
// original_source/.../rtmc_interpreter.c's literal per-opcode pop order.
func (vm *VM) execHalOp(ctx *Context, inst Instruction) *VmFault {
	switch inst.Op {
	case OpHwGpioInit:
		// Pop order: mode, then pin.
		mode, f := ctx.Pop()
		if f != nil {
			return f
		}
		pin, f := ctx.Pop()
		if f != nil {
			return f
		}
		err := vm.hal.GPIOInit(pin.Uint32(), GPIOMode(mode.Uint32()))
		return ctx.Push(ValueFromBool(err == nil))

	case OpHwGpioSet:
		// Pop order: value, then pin.
		value, f := ctx.Pop()
		if f != nil {
			return f
		}
		pin, f := ctx.Pop()
		if f != nil {
			return f
		}
		err := vm.hal.GPIOSet(pin.Uint32(), value.Uint32())
		return ctx.Push(ValueFromBool(err == nil))

	case OpHwGpioGet:
		pin, f := ctx.Pop()
		if f != nil {
			return f
		}
		v, err := vm.hal.GPIOGet(pin.Uint32())
		if err != nil {
			v = 0
		}
		return ctx.Push(ValueFromUint32(v))

	case OpHwTimerInit:
		// Pop order: wrap, then timer.
		wrap, f := ctx.Pop()
		if f != nil {
			return f
		}
		timer, f := ctx.Pop()
		if f != nil {
			return f
		}
		err := vm.hal.TimerInit(timer.Uint32(), wrap.Uint32())
		return ctx.Push(ValueFromBool(err == nil))

	case OpHwTimerStart:
		timer, f := ctx.Pop()
		if f != nil {
			return f
		}
		err := vm.hal.TimerStart(timer.Uint32())
		return ctx.Push(ValueFromBool(err == nil))

	case OpHwTimerStop:
		timer, f := ctx.Pop()
		if f != nil {
			return f
		}
		err := vm.hal.TimerStop(timer.Uint32())
		return ctx.Push(ValueFromBool(err == nil))

	case OpHwTimerSetDuty:
		// Pop order: percent, then timer.
		percent, f := ctx.Pop()
		if f != nil {
			return f
		}
		timer, f := ctx.Pop()
		if f != nil {
			return f
		}
		err := vm.hal.TimerSetDutyPercent(timer.Uint32(), percent.Uint32())
		return ctx.Push(ValueFromBool(err == nil))

	case OpHwAdcInit:
		pin, f := ctx.Pop()
		if f != nil {
			return f
		}
		channel, err := vm.hal.ADCInit(pin.Uint32())
		if err != nil {
			return ctx.Push(ValueFromInt32(-1))
		}
		return ctx.Push(ValueFromUint32(channel))

	case OpHwAdcRead:
		channel, f := ctx.Pop()
		if f != nil {
			return f
		}
		v, err := vm.hal.ADCRead(channel.Uint32())
		if err != nil {
			v = 0
		}
		return ctx.Push(ValueFromUint32(v))

	case OpHwUartWrite:
		data, f := ctx.Pop()
		if f != nil {
			return f
		}
		vm.hal.UARTWrite(data.Uint32())

	case OpHwSpiTransfer:
		data, f := ctx.Pop()
		if f != nil {
			return f
		}
		reply, _ := vm.hal.SPITransfer(data.Uint32())
		return ctx.Push(ValueFromUint32(reply))

	case OpHwI2cWrite:
		// Pop order: data, then addr.
		data, f := ctx.Pop()
		if f != nil {
			return f
		}
		addr, f := ctx.Pop()
		if f != nil {
			return f
		}
		err := vm.hal.I2CWrite(addr.Uint32(), data.Uint32())
		return ctx.Push(ValueFromBool(err == nil))

	case OpHwI2cRead:
		addr, f := ctx.Pop()
		if f != nil {
			return f
		}
		v, err := vm.hal.I2CRead(addr.Uint32())
		if err != nil {
			v = 0
		}
		return ctx.Push(ValueFromUint32(v))
	}
	return nil
}
