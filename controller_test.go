package rtmcvm

import (
	"testing"
	"time"
)

func imageWithMain(instructions ...Instruction) *Image {
	return &Image{
		Instructions: instructions,
		Functions:    []FuncEntry{{Name: "main", Addr: 0}},
	}
}

func TestControllerLifecycle(t *testing.T) {
	vm := NewVM()

	if err := vm.Run(); err != ErrWrongState {
		t.Fatalf("Run before Load: got %v want ErrWrongState", err)
	}

	img := imageWithMain(NewInstruction(OpHalt, 1))
	if err := vm.Load(img); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if vm.State() != StateLoaded {
		t.Fatalf("state after Load: %v", vm.State())
	}

	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if vm.State() != StateRunning {
		t.Fatalf("state after Run: %v", vm.State())
	}

	if err := vm.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if vm.State() != StateStopped {
		t.Fatalf("state after Stop: %v", vm.State())
	}

	if err := vm.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if vm.State() != StateDestroyed {
		t.Fatalf("state after Destroy: %v", vm.State())
	}
	if err := vm.Destroy(); err != ErrWrongState {
		t.Fatalf("double Destroy: got %v want ErrWrongState", err)
	}
}

// TestTaskLocalFaultDoesNotStopVM covers S6: a division-by-zero fault in
// one task terminates only that task; the VM remains Running and its
// Status call still succeeds.
func TestTaskLocalFaultDoesNotStopVM(t *testing.T) {
	vm := NewVM()

	img := imageWithMain(
		NewInstruction(OpLoadConst, 1, ValueFromUint32(0)),
		NewInstruction(OpLoadConst, 1, ValueFromUint32(1)),
		NewInstruction(OpDiv, 1),
		NewInstruction(OpHalt, 1),
	)
	img.Constants = []Value{ValueFromInt32(1), ValueFromInt32(0)}
	if err := vm.Load(img); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if vm.State() != StateRunning {
		t.Fatalf("VM should remain running after a task-local fault, got %v", vm.State())
	}
	status := vm.Status()
	if status.TaskCount != 1 {
		t.Fatalf("expected the faulted task to still be tracked, got count=%d", status.TaskCount)
	}

	if err := vm.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
}

func TestStatusReportsImageTables(t *testing.T) {
	vm := NewVM()
	img := &Image{
		Instructions: []Instruction{NewInstruction(OpHalt, 1)},
		Constants:    []Value{1, 2, 3},
		Strings:      []string{"a", "b"},
		Functions:    []FuncEntry{{Name: "main", Addr: 0}},
		Symbols:      []SymEntry{{Name: "x", Addr: 0}},
	}
	if err := vm.Load(img); err != nil {
		t.Fatalf("Load: %v", err)
	}

	st := vm.Status()
	if st.Instructions != 1 || st.Constants != 3 || st.Strings != 2 ||
		st.Functions != 1 || st.Symbols != 1 {
		t.Fatalf("unexpected status snapshot: %+v", st)
	}
}

func TestRunWithNoMainStaysRunningWithoutTasks(t *testing.T) {
	vm := NewVM()
	img := &Image{Instructions: []Instruction{NewInstruction(OpHalt, 1)}}
	if err := vm.Load(img); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if vm.State() != StateRunning {
		t.Fatalf("state: %v", vm.State())
	}
	if st := vm.Status(); st.TaskCount != 0 {
		t.Fatalf("expected no bootstrap task, got count=%d", st.TaskCount)
	}
}
