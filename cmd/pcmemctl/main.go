// pcmemctl - thin CLI front door for two commands, A20GATE and RE-DOS.
// Neither touches any internal surface of pcmem beyond the public
// EnableA20/DispatchCMOSShutdown operations.
//
// License: GPLv3 or later
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/otley-systems/pcmem"
)

func main() {
	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var memSizeMB int64
	var raw bool
	flagSet.Int64Var(&memSizeMB, "memsize", 16, "guest RAM size in MiB")
	flagSet.BoolVar(&raw, "raw", false, "use raw terminal mode for status display")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: pcmemctl [--memsize MB] [--raw] A20GATE [ON|OFF|SET <mode>] | RE-DOS")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	args := flagSet.Args()
	if len(args) == 0 {
		flagSet.Usage()
		os.Exit(1)
	}

	state, err := pcmem.New(pcmem.Config{MemSizeMB: memSizeMB})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pcmemctl: %v\n", err)
		os.Exit(1)
	}
	defer state.Close()

	var restore *term.State
	if raw && term.IsTerminal(int(os.Stdin.Fd())) {
		restore, err = term.MakeRaw(int(os.Stdin.Fd()))
		if err == nil {
			defer term.Restore(int(os.Stdin.Fd()), restore)
		}
	}

	switch strings.ToUpper(args[0]) {
	case "A20GATE":
		if err := runA20Gate(state, args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "pcmemctl: %v\n", err)
			os.Exit(1)
		}
	case "RE-DOS":
		runReDOS(state)
	default:
		flagSet.Usage()
		os.Exit(1)
	}
}

// runA20Gate implements `A20GATE [ON | OFF | SET <mode>]` by calling only
// EnableA20 and printing the resulting state.
func runA20Gate(state *pcmem.MemoryState, args []string) error {
	if len(args) == 0 {
		fmt.Printf("A20 gate: %s\n", onOff(state.A20Enabled()))
		return nil
	}

	switch strings.ToUpper(args[0]) {
	case "ON":
		state.EnableA20(true)
	case "OFF":
		state.EnableA20(false)
	case "SET":
		if len(args) < 2 {
			return fmt.Errorf("A20GATE SET requires a mode value")
		}
		v, err := strconv.ParseUint(args[1], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid A20GATE SET value %q: %w", args[1], err)
		}
		state.EnableA20(v != 0)
	default:
		return fmt.Errorf("unknown A20GATE argument %q", args[0])
	}

	fmt.Printf("A20 gate: %s\n", onOff(state.A20Enabled()))
	return nil
}

// runReDOS implements `RE-DOS` by asking the core to dispatch the IBM
// 0x0A shutdown byte (real-mode jump to the BIOS reset vector) and
// reporting the Resume action
// the caller's CPU dispatcher would need to perform.
func runReDOS(state *pcmem.MemoryState) {
	_ = state // the reset path itself carries no state through this command
	resume := pcmem.DispatchCMOSShutdown(pcmem.ShutdownJumpRealMode0A)
	fmt.Printf("reset dispatched: resume kind %d\n", resume.Kind)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
