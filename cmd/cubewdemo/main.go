// Command cubewdemo exercises the writer end-to-end: it builds a small
// four-dimension report and writes it to a .cubex archive, the way a
// measurement-system integration would.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/scorep-tools/cubew"
	"github.com/scorep-tools/cubew/metric"
	"github.com/scorep-tools/cubew/systree"
	"github.com/scorep-tools/cubew/topology"
	"github.com/scorep-tools/cubew/valuecodec"
)

var version = "0.1.0"

func printUsage() {
	fmt.Fprintf(os.Stderr, `cubewdemo v%s — builds a sample report and writes it to a .cubex archive

Usage:
  cubewdemo [OPTIONS] OUTPUT.cubex

Options:
  -slave        Write as a SLAVE report (rows only, no anchor)
  -ranks N      Number of CPU-thread locations to create (default 2)
  -version      Print version and exit
`, version)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cubewdemo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var slave bool
	var ranks int
	var showVersion bool

	flag.BoolVar(&slave, "slave", false, "write as a SLAVE report")
	flag.IntVar(&ranks, "ranks", 2, "number of CPU-thread locations to create")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Usage = printUsage
	flag.Parse()

	if showVersion {
		fmt.Printf("cubewdemo v%s\n", version)
		return nil
	}

	args := flag.Args()
	if len(args) != 1 {
		printUsage()
		return fmt.Errorf("exactly one OUTPUT.cubex argument required")
	}

	flavour := cubew.Master
	if slave {
		flavour = cubew.Slave
	}

	rpt, err := cubew.Create(args[0], flavour)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	rpt.DefineAttribute("CUBE_CREATE_TOOL", "cubewdemo")
	rpt.SetMetricsTitle("Metrics")
	rpt.SetCalltreeTitle("Calls")
	rpt.SetSystemtreeTitle("System")

	timeMetric, err := rpt.DefineMetric(nil, "Time", "time", valuecodec.ValueType{Kind: valuecodec.KindDouble}, metric.Exclusive)
	if err != nil {
		return fmt.Errorf("define metric: %w", err)
	}
	timeMetric.Unit = "sec"
	timeMetric.Description = "Total wall-clock time"

	mainRegion, err := rpt.DefineRegion("main", "main", "mpi", "function", 1, 42, "", "", "main.c")
	if err != nil {
		return fmt.Errorf("define region: %w", err)
	}
	mainCnode, err := rpt.DefineCnode(mainRegion, nil, "main.c", 1)
	if err != nil {
		return fmt.Errorf("define cnode: %w", err)
	}

	node, err := rpt.DefineSystemNode("localhost", "", "machine", nil)
	if err != nil {
		return fmt.Errorf("define system node: %w", err)
	}
	group, err := rpt.DefineLocationGroup(node, "process 0", 0, systree.Process)
	if err != nil {
		return fmt.Errorf("define location group: %w", err)
	}
	for i := 0; i < ranks; i++ {
		if _, err := rpt.DefineLocation(group, fmt.Sprintf("thread %d", i), i, systree.CPUThread); err != nil {
			return fmt.Errorf("define location: %w", err)
		}
	}

	cart, err := rpt.DefineCartesian("ranks", []topology.Dimension{{Size: ranks}})
	if err != nil {
		return fmt.Errorf("define cartesian: %w", err)
	}
	for i := 0; i < ranks; i++ {
		loc := node.Groups()[0].Locations()[i]
		cart.SetCoord(loc, []int{i})
	}

	values := make([]float64, ranks)
	for i := range values {
		values[i] = 1.5 * float64(i+1)
	}
	if err := rpt.WriteRow(timeMetric, mainCnode, valuecodec.NewDoubleRow(values)); err != nil {
		return fmt.Errorf("write row: %w", err)
	}

	if err := rpt.Finalize(); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	fmt.Printf("wrote %s\n", args[0])
	return nil
}
