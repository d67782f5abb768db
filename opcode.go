package rtmcvm

// Opcode identifies one RT-Micro-C bytecode instruction. The set matches
// the original RTMC interpreter's opcode enum, extended with the
// comparison, array, pointer, and peripheral opcodes the distilled
// specification's Non-goals do not exclude.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpComment

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpNot

	// Comparison
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte

	// Control flow
	OpJump
	OpJumpIfTrue
	OpJumpIfFalse
	OpCall
	OpRet
	OpHalt

	// Global memory
	OpLoadConst
	OpLoadVar
	OpStoreVar
	OpGlobalVarDeclare

	// Arrays and pointers over global memory
	OpAllocArray
	OpLoadArrayElem
	OpStoreArrayElem
	OpLoadAddr
	OpLoadDeref
	OpStoreDeref

	// RTOS bridge
	OpRtosCreateTask
	OpRtosDeleteTask
	OpRtosSuspendTask
	OpRtosResumeTask
	OpRtosDelayMs
	OpRtosYield
	OpRtosSemaphoreCreate
	OpRtosSemaphoreTake
	OpRtosSemaphoreGive
	OpMsgDeclare
	OpMsgSend
	OpMsgRecv

	// Hardware abstraction
	OpHwGpioInit
	OpHwGpioSet
	OpHwGpioGet
	OpHwTimerInit
	OpHwTimerStart
	OpHwTimerStop
	OpHwTimerSetDuty
	OpHwAdcInit
	OpHwAdcRead
	OpHwUartWrite
	OpHwSpiTransfer
	OpHwI2cWrite
	OpHwI2cRead

	// Diagnostics
	OpPrint
	OpPrintf
	OpDbgBreakpoint

	opcodeCount
)

var opcodeNames = [opcodeCount]string{
	OpNop:                 "NOP",
	OpComment:             "COMMENT",
	OpAdd:                 "ADD",
	OpSub:                 "SUB",
	OpMul:                 "MUL",
	OpDiv:                 "DIV",
	OpMod:                 "MOD",
	OpAnd:                 "AND",
	OpOr:                  "OR",
	OpXor:                 "XOR",
	OpNot:                 "NOT",
	OpEq:                  "EQ",
	OpNeq:                 "NEQ",
	OpLt:                  "LT",
	OpLte:                 "LTE",
	OpGt:                  "GT",
	OpGte:                 "GTE",
	OpJump:                "JUMP",
	OpJumpIfTrue:          "JUMPIF_TRUE",
	OpJumpIfFalse:         "JUMPIF_FALSE",
	OpCall:                "CALL",
	OpRet:                 "RET",
	OpHalt:                "HALT",
	OpLoadConst:           "LOAD_CONST",
	OpLoadVar:             "LOAD_VAR",
	OpStoreVar:            "STORE_VAR",
	OpGlobalVarDeclare:    "GLOBAL_VAR_DECLARE",
	OpAllocArray:          "ALLOC_ARRAY",
	OpLoadArrayElem:       "LOAD_ARRAY_ELEM",
	OpStoreArrayElem:      "STORE_ARRAY_ELEM",
	OpLoadAddr:            "LOAD_ADDR",
	OpLoadDeref:           "LOAD_DEREF",
	OpStoreDeref:          "STORE_DEREF",
	OpRtosCreateTask:      "RTOS_CREATE_TASK",
	OpRtosDeleteTask:      "RTOS_DELETE_TASK",
	OpRtosSuspendTask:     "RTOS_SUSPEND_TASK",
	OpRtosResumeTask:      "RTOS_RESUME_TASK",
	OpRtosDelayMs:         "RTOS_DELAY_MS",
	OpRtosYield:           "RTOS_YIELD",
	OpRtosSemaphoreCreate: "RTOS_SEMAPHORE_CREATE",
	OpRtosSemaphoreTake:   "RTOS_SEMAPHORE_TAKE",
	OpRtosSemaphoreGive:   "RTOS_SEMAPHORE_GIVE",
	OpMsgDeclare:          "MSG_DECLARE",
	OpMsgSend:             "MSG_SEND",
	OpMsgRecv:             "MSG_RECV",
	OpHwGpioInit:          "HW_GPIO_INIT",
	OpHwGpioSet:           "HW_GPIO_SET",
	OpHwGpioGet:           "HW_GPIO_GET",
	OpHwTimerInit:         "HW_TIMER_INIT",
	OpHwTimerStart:        "HW_TIMER_START",
	OpHwTimerStop:         "HW_TIMER_STOP",
	OpHwTimerSetDuty:      "HW_TIMER_SET_DUTY",
	OpHwAdcInit:           "HW_ADC_INIT",
	OpHwAdcRead:           "HW_ADC_READ",
	OpHwUartWrite:         "HW_UART_WRITE",
	OpHwSpiTransfer:       "HW_SPI_TRANSFER",
	OpHwI2cWrite:          "HW_I2C_WRITE",
	OpHwI2cRead:           "HW_I2C_READ",
	OpPrint:               "PRINT",
	OpPrintf:              "PRINTF",
	OpDbgBreakpoint:       "DBG_BREAKPOINT",
}

func (op Opcode) String() string {
	if op >= opcodeCount {
		return "UNKNOWN"
	}
	if n := opcodeNames[op]; n != "" {
		return n
	}
	return "UNKNOWN"
}

// Valid reports whether op is a recognized opcode.
func (op Opcode) Valid() bool {
	return op < opcodeCount
}

// branches is the set of opcodes that set PC themselves; every other
// opcode auto-advances PC by one after executing (spec.md §4.2).
func (op Opcode) branches() bool {
	switch op {
	case OpJump, OpJumpIfTrue, OpJumpIfFalse, OpCall, OpRet:
		return true
	default:
		return false
	}
}
