package rtmcvm

import (
	"errors"
	"sync"
)

// Peripheral capacities (spec.md §3/§6).
const (
	NumGPIOPins    = 30
	NumTimers      = 8
	NumADCChannels = 4
)

var (
	errInvalidPin         = errors.New("rtmcvm: invalid GPIO pin")
	errUninitialisedGPIO  = errors.New("rtmcvm: GPIO pin not initialised")
	errInvalidTimer       = errors.New("rtmcvm: invalid timer id")
	errUninitialisedTimer = errors.New("rtmcvm: timer not initialised")
	errInvalidADCChannel  = errors.New("rtmcvm: invalid ADC channel")
	errUninitialisedADC   = errors.New("rtmcvm: ADC channel not initialised")
)

// GPIOMode names a pin's configured direction.
type GPIOMode uint32

const (
	GPIOInput GPIOMode = iota
	GPIOOutput
)

// PeripheralDriver is the hardware abstraction's external collaborator
// (spec.md §1/§4.5): GPIO, timer/PWM, and ADC, plus the UART/SPI/I2C
// capability spec.md §6 names for the external interface. The real
// implementation talks to silicon; simDriver below is the in-memory
// stand-in used for headless operation and tests. Grounded on
// file_io.go/media_loader.go's HandleRead/HandleWrite + validate-then-
// dispatch device shape.
type PeripheralDriver interface {
	GPIOInit(pin uint32, mode GPIOMode) error
	GPIOSet(pin uint32, value uint32) error
	GPIOGet(pin uint32) (uint32, error)

	TimerInit(timer uint32, wrap uint32) error
	TimerStart(timer uint32) error
	TimerStop(timer uint32) error
	TimerSetDutyPercent(timer uint32, percent uint32) error

	ADCInit(pin uint32) (channel uint32, err error)
	ADCRead(channel uint32) (uint32, error)

	UARTWrite(data uint32) error
	SPITransfer(data uint32) (uint32, error)
	I2CWrite(addr uint32, data uint32) error
	I2CRead(addr uint32) (uint32, error)
}

type gpioPin struct {
	initialised bool
	mode        GPIOMode
	value       uint32
}

type timerState struct {
	initialised bool
	wrap        uint32
	running     bool
	dutyPercent uint32
}

type adcChannel struct {
	initialised bool
	pin         uint32
}

// simDriver is the default PeripheralDriver: it records pin/timer/
// channel state in memory exactly as the original firmware's
// initialised-flag-gated functions do, without touching real silicon.
type simDriver struct {
	mu     sync.Mutex
	gpio   [NumGPIOPins]gpioPin
	timers [NumTimers]timerState
	adc    [NumADCChannels]adcChannel
}

// NewSimDriver constructs the headless default PeripheralDriver.
func NewSimDriver() PeripheralDriver { return &simDriver{} }

func (d *simDriver) GPIOInit(pin uint32, mode GPIOMode) error {
	if pin >= NumGPIOPins {
		return errInvalidPin
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gpio[pin] = gpioPin{initialised: true, mode: mode}
	return nil
}

func (d *simDriver) GPIOSet(pin uint32, value uint32) error {
	if pin >= NumGPIOPins {
		return errInvalidPin
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.gpio[pin].initialised {
		return errUninitialisedGPIO
	}
	d.gpio[pin].value = value
	return nil
}

func (d *simDriver) GPIOGet(pin uint32) (uint32, error) {
	if pin >= NumGPIOPins {
		return 0, errInvalidPin
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.gpio[pin].initialised {
		return 0, errUninitialisedGPIO
	}
	return d.gpio[pin].value, nil
}

func (d *simDriver) TimerInit(timer uint32, wrap uint32) error {
	if timer >= NumTimers {
		return errInvalidTimer
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timers[timer] = timerState{initialised: true, wrap: wrap}
	return nil
}

func (d *simDriver) TimerStart(timer uint32) error {
	if timer >= NumTimers {
		return errInvalidTimer
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.timers[timer].initialised {
		return errUninitialisedTimer
	}
	d.timers[timer].running = true
	return nil
}

func (d *simDriver) TimerStop(timer uint32) error {
	if timer >= NumTimers {
		return errInvalidTimer
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.timers[timer].initialised {
		return errUninitialisedTimer
	}
	d.timers[timer].running = false
	return nil
}

// TimerSetDutyPercent sets the PWM duty cycle as a percentage of the
// timer's wrap value, matching the original's duty-cycle-as-percent-of-
// wrap computation.
func (d *simDriver) TimerSetDutyPercent(timer uint32, percent uint32) error {
	if timer >= NumTimers {
		return errInvalidTimer
	}
	if percent > 100 {
		percent = 100
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.timers[timer].initialised {
		return errUninitialisedTimer
	}
	d.timers[timer].dutyPercent = percent
	return nil
}

// ADCInit allocates the first free ADC channel for pin, matching the
// original's first-free-by-pin allocation strategy. If pin is already
// bound to a channel, that channel is returned again (idempotent init).
func (d *simDriver) ADCInit(pin uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.adc {
		if d.adc[i].initialised && d.adc[i].pin == pin {
			return uint32(i), nil
		}
	}
	for i := range d.adc {
		if !d.adc[i].initialised {
			d.adc[i] = adcChannel{initialised: true, pin: pin}
			return uint32(i), nil
		}
	}
	return 0, &ResourceExhausted{Kind: ResourceADCChannel}
}

func (d *simDriver) ADCRead(channel uint32) (uint32, error) {
	if channel >= NumADCChannels {
		return 0, errInvalidADCChannel
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.adc[channel].initialised {
		return 0, errUninitialisedADC
	}
	// Simulated mid-scale reading; a real driver samples the channel.
	return 2048, nil
}

func (d *simDriver) UARTWrite(data uint32) error             { return nil }
func (d *simDriver) SPITransfer(data uint32) (uint32, error) { return data, nil }
func (d *simDriver) I2CWrite(addr uint32, data uint32) error { return nil }
func (d *simDriver) I2CRead(addr uint32) (uint32, error)     { return 0, nil }
