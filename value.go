package rtmcvm

import "math"

// Value is the VM's universal 32-bit cell. It carries no runtime type
// tag; the consuming opcode decides whether the bits are a signed
// integer, an unsigned integer, an IEEE-754 float, or a pointer-token
// (an index into global memory). This mirrors the original interpreter's
// rtmc_value_t union and the teacher's register reinterpretation helpers
// in cpu_ie32.go.
type Value uint32

// Int32 reinterprets the Value as a signed 32-bit integer.
func (v Value) Int32() int32 { return int32(v) }

// Uint32 reinterprets the Value as an unsigned 32-bit integer.
func (v Value) Uint32() uint32 { return uint32(v) }

// Float32 reinterprets the Value's bits as an IEEE-754 float32.
func (v Value) Float32() float32 { return math.Float32frombits(uint32(v)) }

// Bool reports the Value's C-style truthiness: any nonzero bit pattern
// is true.
func (v Value) Bool() bool { return v != 0 }

// ValueFromInt32 packs a signed integer into a Value.
func ValueFromInt32(i int32) Value { return Value(uint32(i)) }

// ValueFromUint32 packs an unsigned integer into a Value.
func ValueFromUint32(u uint32) Value { return Value(u) }

// ValueFromFloat32 packs an IEEE-754 float32 into a Value.
func ValueFromFloat32(f float32) Value { return Value(math.Float32bits(f)) }

// ValueFromBool packs a boolean as the canonical 0/1 Value.
func ValueFromBool(b bool) Value {
	if b {
		return 1
	}
	return 0
}
