// devctx lists the queues available for each supported (backend, device type) key, and exercises
// an activation stack with the given -default, -push and -pops operations.
//
// It uses the simulated runtime configured with $DEVCTX_TOPOLOGY and $DEVCTX_DEVICE_SELECTOR, or
// the topology file given with -topology.
//
// Example:
//
//	devctx -push level_zero:gpu:0 -push opencl:cpu -pops 1 -metrics
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gomlx/devctx/platform"
	"github.com/gomlx/devctx/platform/sim"
	"github.com/gomlx/devctx/queues"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

// selectorList implements flag.Value for a repeatable device selector flag.
type selectorList []string

func (l *selectorList) String() string { return strings.Join(*l, ",") }

func (l *selectorList) Set(value string) error {
	if _, _, err := platform.ParseSelector(value); err != nil {
		return err
	}
	*l = append(*l, value)
	return nil
}

var (
	flagTopology = flag.String("topology", "",
		fmt.Sprintf("YAML file with the simulated platforms and devices. If empty, $%s is used, "+
			"and if that is not set a default topology.", sim.TopologyEnv))
	flagSelector = flag.String("selector", "",
		fmt.Sprintf("Default device selector, formatted as \"<backend>:<device_type>[:<index>]\". "+
			"Overrides $%s and the topology's default_selector.", sim.SelectorEnv))
	flagDefault = flag.String("default", "",
		"Queue to install as the default queue of the stack, formatted as \"<backend>:<device_type>[:<index>]\".")
	flagPops     = flag.Int("pops", 0, "Number of times to pop the activation stack after the pushes.")
	flagMetrics  = flag.Bool("metrics", false, "Print the manager's prometheus metrics at the end.")
	flagTopoDump = flag.Bool("dump_topology", false, "Print the topology in use as YAML and exit.")
	flagPushes   selectorList
)

func main() {
	klog.InitFlags(nil)
	flag.Var(&flagPushes, "push",
		"Queue to push on the activation stack, formatted as \"<backend>:<device_type>[:<index>]\". Can be repeated.")
	flag.Parse()

	topo, err := loadTopology()
	if err != nil {
		klog.Fatalf("%+v", err)
	}
	if *flagTopoDump {
		data, err := topo.Marshal()
		if err != nil {
			klog.Fatalf("%+v", err)
		}
		fmt.Print(string(data))
		return
	}

	reg := prometheus.NewRegistry()
	m := queues.New(sim.New(topo), queues.WithRegisterer(reg))
	defer func() {
		if err := m.Close(); err != nil {
			klog.Errorf("failed to close queue manager: %+v", err)
		}
	}()

	if err := printCatalog(os.Stdout, m); err != nil {
		klog.Fatalf("%+v", err)
	}
	if err := run(m); err != nil {
		klog.Fatalf("%+v", err)
	}
	if *flagMetrics {
		if err := printMetrics(os.Stdout, reg); err != nil {
			klog.Fatalf("%+v", err)
		}
	}
}

// loadTopology returns the topology given by -topology, or else the environment's one, with -selector applied.
func loadTopology() (topo sim.Topology, err error) {
	switch {
	case *flagTopology != "":
		topo, err = sim.LoadTopology(*flagTopology)
		if err != nil {
			return topo, errors.WithMessage(err, "-topology")
		}
	default:
		topo, err = sim.TopologyFromEnv()
		if err != nil {
			return topo, err
		}
	}
	if *flagSelector != "" {
		if _, _, err = platform.ParseSelector(*flagSelector); err != nil {
			return topo, errors.WithMessage(err, "-selector")
		}
		topo.DefaultSelector = *flagSelector
	}
	return topo, nil
}

// run applies -default, -push and -pops to a new activation stack, reporting its state after each step.
func run(m *queues.Manager) error {
	stack := m.NewStack()
	reportStack(stack, "initial")

	if *flagDefault != "" {
		key, index, err := platform.ParseSelector(*flagDefault)
		if err != nil {
			return errors.WithMessage(err, "-default")
		}
		q, err := stack.SetDefault(key, index)
		if err != nil {
			return errors.WithMessagef(err, "failed to set default queue to %q", *flagDefault)
		}
		ReportError(q.Release())
		reportStack(stack, "set default "+*flagDefault)
	}

	for _, selector := range flagPushes {
		key, index, err := platform.ParseSelector(selector)
		if err != nil {
			return errors.WithMessage(err, "-push")
		}
		q, err := stack.Push(key, index)
		if err != nil {
			return errors.WithMessagef(err, "failed to push %q", selector)
		}
		ReportError(q.Release())
		reportStack(stack, "push "+selector)
	}

	for ii := range *flagPops {
		stack.Pop()
		reportStack(stack, fmt.Sprintf("pop #%d", ii+1))
	}
	return nil
}

// reportStack prints the depth and current queue of the stack.
func reportStack(stack *queues.Stack, step string) {
	q, err := stack.Current()
	if err != nil {
		fmt.Printf("%-28s depth=%d  current: %v\n", step+":", stack.Depth(), err)
		return
	}
	defer ReportError(q.Release())
	fmt.Printf("%-28s depth=%d  current: %s\n", step+":", stack.Depth(), q)
}

// ReportError logs the error, if not nil.
func ReportError(err error) {
	if err != nil {
		klog.Errorf("Error: %+v", err)
	}
}
