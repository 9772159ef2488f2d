package entity

import (
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/schema"
)

// Netlist is the graph of ports, gates and nets of one circuit snapshot.
// Ports, gates and nets are graph nodes keyed by name; edges follow signal
// direction (driver gate -> net -> load gate).
type Netlist struct {
	GraphView `mapstructure:"-"`

	Width       *float64 `mapstructure:"width"`
	Height      *float64 `mapstructure:"height"`
	NoOfInputs  int64    `mapstructure:"no_of_inputs"`
	NoOfOutputs int64    `mapstructure:"no_of_outputs"`
	NoOfCells   int64    `mapstructure:"no_of_cells"`
	NoOfNets    int64    `mapstructure:"no_of_nets"`
	CellDensity *float64 `mapstructure:"cell_density"`
	PinDensity  *float64 `mapstructure:"pin_density"`
	NetDensity  *float64 `mapstructure:"net_density"`

	Ports map[string]*IOPort       `mapstructure:"-"`
	Gates map[string]*Gate         `mapstructure:"-"`
	Nets  map[string]*Interconnect `mapstructure:"-"`

	CellMetrics         *CellMetrics         `mapstructure:"-"`
	AreaMetrics         *AreaMetrics         `mapstructure:"-"`
	PowerMetrics        *PowerMetrics        `mapstructure:"-"`
	CriticalPathMetrics *CriticalPathMetrics `mapstructure:"-"`
	PowerProfile        *NetlistPowerProfile `mapstructure:"-"`

	TimingPaths map[TimingPathKey]*TimingPath `mapstructure:"-"`
	ClockTrees  map[string]*ClockTree         `mapstructure:"-"`
}

// NewNetlist creates an empty netlist
func NewNetlist() *Netlist {
	n := &Netlist{}
	n.init()
	return n
}

func (*Netlist) Kind() string { return schema.KindNetlist }

func (n *Netlist) init() {
	if n.Ports == nil {
		n.Ports = make(map[string]*IOPort)
	}
	if n.Gates == nil {
		n.Gates = make(map[string]*Gate)
	}
	if n.Nets == nil {
		n.Nets = make(map[string]*Interconnect)
	}
	if n.TimingPaths == nil {
		n.TimingPaths = make(map[TimingPathKey]*TimingPath)
	}
	if n.ClockTrees == nil {
		n.ClockTrees = make(map[string]*ClockTree)
	}
}

func (n *Netlist) addNode(name, nodeType string) error {
	n.init()
	if name == "" {
		return errors.Newf("netlist: %s node without a name", nodeType).
			Component("entity").
			Category(errors.CategoryValidation).
			Build()
	}
	if n.Graph().HasNode(name) {
		return errors.Newf("netlist: duplicate node %s", name).
			Component("entity").
			Category(errors.CategoryValidation).
			Context("node", name).
			Build()
	}
	n.Graph().AddNode(name, graph.Attrs{NodeTypeAttr: nodeType})
	return nil
}

// AddPort adds an I/O port node
func (n *Netlist) AddPort(p *IOPort) error {
	if err := n.addNode(p.Name, NodePort); err != nil {
		return err
	}
	n.Ports[p.Name] = p
	return nil
}

// AddGate adds a gate node
func (n *Netlist) AddGate(g *Gate) error {
	if err := n.addNode(g.Name, NodeGate); err != nil {
		return err
	}
	n.Gates[g.Name] = g
	return nil
}

// AddNet adds an interconnect node
func (n *Netlist) AddNet(net *Interconnect) error {
	if err := n.addNode(net.Name, NodeInterconnect); err != nil {
		return err
	}
	n.Nets[net.Name] = net
	return nil
}

// Connect adds the edge source -> target between two existing nodes
func (n *Netlist) Connect(source, target string) error {
	return n.Graph().AddEdge(source, target, nil)
}

// NodeType returns the type attribute of a node, or "" if it is absent
func (n *Netlist) NodeType(id string) string {
	attrs, ok := n.Graph().Node(id)
	if !ok {
		return ""
	}
	t, _ := attrs[NodeTypeAttr].(string)
	return t
}

// AddTimingPath registers a timing path under its startpoint, endpoint
// and path type
func (n *Netlist) AddTimingPath(p *TimingPath) {
	n.init()
	n.TimingPaths[p.Key()] = p
}

// AddClockTree registers a clock tree under its source
func (n *Netlist) AddClockTree(c *ClockTree) {
	n.init()
	n.ClockTrees[c.Source] = c
}

// UpdateCounts recomputes the port, cell and net counts from the graph
// members and, when area metrics are present, the densities. Pin density
// needs the standard cell library; it is left unchanged when cells is nil.
func (n *Netlist) UpdateCounts(cells map[string]*StandardCell) {
	n.init()
	n.NoOfInputs, n.NoOfOutputs = 0, 0
	for _, p := range n.Ports {
		switch p.Direction {
		case "input", "INPUT":
			n.NoOfInputs++
		case "output", "OUTPUT":
			n.NoOfOutputs++
		}
	}
	n.NoOfCells = int64(len(n.Gates))
	n.NoOfNets = int64(len(n.Nets))

	if n.AreaMetrics == nil || n.AreaMetrics.TotalArea == 0 {
		return
	}
	area := n.AreaMetrics.TotalArea
	if n.CellMetrics != nil {
		n.CellDensity = Float(float64(n.CellMetrics.NoOfTotalCells) / area)
	}
	n.NetDensity = Float(float64(n.NoOfNets) / area)
	if cells != nil {
		var pins int64
		for _, g := range n.Gates {
			if c, ok := cells[g.StandardCell]; ok {
				pins += c.NoOfInputPins + c.NoOfOutputPins
			}
		}
		n.PinDensity = Float(float64(pins) / area)
	}
}
