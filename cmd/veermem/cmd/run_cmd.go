package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/CircuitSutra/VeeR-ISS/datarecording"
	"github.com/CircuitSutra/VeeR-ISS/mem/mem"
	"github.com/CircuitSutra/VeeR-ISS/mem/vm"
	"github.com/CircuitSutra/VeeR-ISS/mem/vm/mmu"
	"github.com/CircuitSutra/VeeR-ISS/monitoring"
)

var (
	memSizeFlag     uint64
	tlbSizeFlag     int
	numAccessesFlag int
	traceFlag       bool
	monitorFlag     bool
	monitorPortFlag int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Set up a demo hart and drive translations through it",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		runDemo()
	},
}

func init() {
	runCmd.Flags().Uint64Var(&memSizeFlag, "mem-size", 1<<24,
		"size of the backing memory in bytes")
	runCmd.Flags().IntVar(&tlbSizeFlag, "tlb-size", 32,
		"number of TLB entries")
	runCmd.Flags().IntVar(&numAccessesFlag, "accesses", 1024,
		"number of translations to perform")
	runCmd.Flags().BoolVar(&traceFlag, "trace", false,
		"record translation traces to a SQLite database")
	runCmd.Flags().BoolVar(&monitorFlag, "monitor", false,
		"serve the core state over HTTP and open a browser")
	runCmd.Flags().IntVar(&monitorPortFlag, "monitor-port", 0,
		"port of the monitoring server, random if 0")

	rootCmd.AddCommand(runCmd)
}

func runDemo() {
	memory := mem.NewMemory(memSizeFlag, 4096)

	u := mmu.MakeBuilder().
		WithMemory(memory).
		WithHartIx(0).
		WithTLBSize(tlbSizeFlag).
		Build()

	if traceFlag {
		recorder := datarecording.NewTraceRecorder(os.Getenv("VEERMEM_TRACE_DB"))
		defer recorder.Flush()
		u.SetTracer(datarecording.NewTracer(recorder))
	}

	setUpDemoPageTable(memory)
	u.SetMode(vm.Sv32)
	u.SetPageTableRoot(1)

	if monitorFlag {
		monitor := monitoring.NewMonitor()
		if monitorPortFlag != 0 {
			monitor.WithPortNumber(monitorPortFlag)
		}
		monitor.Register("Hart0.MMU", u)
		monitor.Register("Hart0.Memory", memory)
		monitor.Register("Pmas", memory.Pmas())

		addr := monitor.StartServer()
		_ = browser.OpenURL(addr + "/api/list_subsystems")
	}

	translated, faulted := 0, 0
	for i := 0; i < numAccessesFlag; i++ {
		va := uint64(0x00800000 + i*64)
		_, cause := u.Translate(va, vm.User, true, false, false)
		if cause == vm.None {
			translated++
		} else {
			faulted++
		}
	}

	fmt.Printf("%d translations succeeded, %d faulted\n",
		translated, faulted)

	if monitorFlag {
		fmt.Println("Monitoring server is running. Press enter to exit.")
		_, _ = fmt.Scanln()
	}
}

// setUpDemoPageTable builds a small Sv32 table at 0x1000: one second
// level table mapping the pages of virtual segment 0x00800000 onto the
// physical pages starting at 0x00100000.
func setUpDemoPageTable(memory *mem.Memory) {
	const (
		rootTable   = uint64(0x1000)
		secondLevel = uint64(0x2000)
		physBase    = uint64(0x00100000)
		leafFlags   = uint32(0xdf) // V R W X U A D
	)

	// vpn1 of 0x00800000 is 2.
	memory.Write32(0, rootTable+2*4, uint32(secondLevel>>12<<10|0x1))

	for i := uint64(0); i < 256; i++ {
		ppn := (physBase >> 12) + i
		memory.Write32(0, secondLevel+i*4, uint32(ppn<<10)|leafFlags)
	}
}
