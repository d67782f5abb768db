package rtmcvm

import (
	"bytes"
	"testing"
)

func TestFormatRtmcSubstitutesArgs(t *testing.T) {
	got := formatRtmc("value=%d flag=%d", []Value{ValueFromInt32(42), ValueFromBool(true)})
	want := "value=42 flag=1"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFormatRtmcLeavesUnmatchedVerbLiteral(t *testing.T) {
	got := formatRtmc("no args here: %d", nil)
	want := "no args here: %d"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestExecPrintfLogsSubstitutedLine(t *testing.T) {
	var out bytes.Buffer
	vm := NewVM(WithDiagnostics(NewDiagnostics(&out)))
	vm.image = &Image{Strings: []string{"count=%d"}}
	ctx := newContext(vm, 0, "t1", 0, 0)
	ctx.Push(ValueFromInt32(7))

	inst := NewInstruction(OpPrintf, 1, ValueFromUint32(0), ValueFromUint32(1))
	if f := vm.execPrintf(ctx, inst); f != nil {
		t.Fatalf("execPrintf: %v", f)
	}
	if ctx.SP != 0 {
		t.Fatalf("expected printf to consume its argument, sp=%d", ctx.SP)
	}
	if got, want := out.String(), "[RTMC DEBUG] count=7\n"; got != want {
		t.Fatalf("logged line: got %q want %q", got, want)
	}
}

func TestStringAtFallsBackOnInvalidIndex(t *testing.T) {
	vm := NewVM()
	vm.image = &Image{Strings: []string{"hello"}}

	if got := vm.stringAt(0); got != "hello" {
		t.Fatalf("got %q want %q", got, "hello")
	}
	if got := vm.stringAt(5); got != "<invalid string 5>" {
		t.Fatalf("got %q want fallback", got)
	}
}

// TestPrintEmitsStringPoolEntry covers PRINT: pop a string index, emit
// strings[idx] via the diagnostic channel.
func TestPrintEmitsStringPoolEntry(t *testing.T) {
	var out bytes.Buffer
	vm := NewVM(WithDiagnostics(NewDiagnostics(&out)))
	vm.image = &Image{Strings: []string{"booted"}}
	ctx := newContext(vm, 0, "t1", 0, 0)
	ctx.Push(ValueFromUint32(0))

	if f := Step(vm, ctx, NewInstruction(OpPrint, 1)); f != nil {
		t.Fatalf("unexpected fault: %v", f)
	}
	if ctx.SP != 0 {
		t.Fatalf("expected PRINT to consume its string index, sp=%d", ctx.SP)
	}
	if got, want := out.String(), "[RTMC DEBUG] booted\n"; got != want {
		t.Fatalf("emitted line: got %q want %q", got, want)
	}
}
