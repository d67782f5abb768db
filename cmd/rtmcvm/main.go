// Command rtmcvm is a minimal control shell over a single VM instance,
// standing in for the external shell the core RT-Micro-C VM treats as
// an out-of-scope collaborator. It exists so the rtmcvm package has an
// in-repo way to be exercised end-to-end.
package main

import (
	"fmt"
	"os"

	"github.com/rtmc/vm"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var binPath string

	root := &cobra.Command{
		Use:   "rtmcvm",
		Short: "Run and inspect an RT-Micro-C bytecode image",
	}
	root.PersistentFlags().StringVarP(&binPath, "image", "i", "", "path to a compiled .rtmc binary image")

	root.AddCommand(
		newRunCmd(&binPath),
		newTraceCmd(&binPath),
	)
	return root
}

// newRunCmd loads and runs an image to completion of its bootstrap
// task, printing a final status snapshot — the load/run/status entry
// points of the VM Controller lifecycle exercised from one command.
func newRunCmd(binPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load and run an image, reporting status on exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *binPath == "" {
				return fmt.Errorf("rtmcvm: --image is required")
			}
			data, err := os.ReadFile(*binPath)
			if err != nil {
				return err
			}
			img, err := rtmcvm.Decode(data)
			if err != nil {
				return err
			}

			v := rtmcvm.NewVM(rtmcvm.WithDiagnostics(rtmcvm.NewDiagnostics(os.Stdout)))
			if err := v.Load(img); err != nil {
				return err
			}
			if err := v.Run(); err != nil {
				return err
			}

			st := v.Status()
			fmt.Printf("state=%s tasks=%d semaphores=%d queues=%d free_heap=%d\n",
				st.State, st.TaskCount, st.SemaphoreCount, st.QueueCount, st.FreeHeapBytes)

			return v.Destroy()
		},
	}
}

// newTraceCmd runs an image with per-instruction tracing enabled,
// putting the controlling terminal into raw mode so Ctrl-C and resize
// handling behave correctly while the trace stream is tailed. This is a
// diagnostic aid, not a source-level debugger: it has no breakpoint or
// step facility.
func newTraceCmd(binPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "trace",
		Short: "Run an image, streaming per-instruction trace lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *binPath == "" {
				return fmt.Errorf("rtmcvm: --image is required")
			}
			data, err := os.ReadFile(*binPath)
			if err != nil {
				return err
			}
			img, err := rtmcvm.Decode(data)
			if err != nil {
				return err
			}

			fd := int(os.Stdin.Fd())
			if term.IsTerminal(fd) {
				oldState, err := term.MakeRaw(fd)
				if err == nil {
					defer term.Restore(fd, oldState)
				}
			}

			diag := rtmcvm.NewDiagnostics(os.Stdout)
			diag.SetTrace(true)
			v := rtmcvm.NewVM(rtmcvm.WithDiagnostics(diag))
			if err := v.Load(img); err != nil {
				return err
			}
			if err := v.Run(); err != nil {
				return err
			}

			// Block until the user interrupts; raw mode means a
			// plain Ctrl-C keystroke must be read and acted on here
			// rather than relying on signal delivery alone.
			buf := make([]byte, 1)
			for {
				n, err := os.Stdin.Read(buf)
				if err != nil || (n == 1 && buf[0] == 0x03) {
					break
				}
			}
			return v.Destroy()
		},
	}
}
