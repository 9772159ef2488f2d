package entity

import (
	"math"

	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/schema"
)

// Interconnect is a net. After routing its graph holds the wire segments,
// with an edge between segments that share an end point.
type Interconnect struct {
	GraphView `mapstructure:"-"`

	Name        string   `mapstructure:"name"`
	NoOfInputs  int64    `mapstructure:"no_of_inputs"`
	NoOfOutputs int64    `mapstructure:"no_of_outputs"`
	XMin        *float64 `mapstructure:"x_min"`
	YMin        *float64 `mapstructure:"y_min"`
	XMax        *float64 `mapstructure:"x_max"`
	YMax        *float64 `mapstructure:"y_max"`
	HWPL        *float64 `mapstructure:"hwpl"`
	RUDY        *float64 `mapstructure:"rudy"`
	Resistance  *float64 `mapstructure:"resistance"`
	Capacitance *float64 `mapstructure:"capacitance"`

	Segments map[string]*InterconnectSegment `mapstructure:"-"`
}

// NewInterconnect creates a net without segments
func NewInterconnect(name string) *Interconnect {
	return &Interconnect{Name: name, Segments: make(map[string]*InterconnectSegment)}
}

func (*Interconnect) Kind() string { return schema.KindInterconnect }

// InterconnectSegment is one routed wire of a net
type InterconnectSegment struct {
	Name        string   `mapstructure:"name"`
	Length      *float64 `mapstructure:"length"`
	X1          *float64 `mapstructure:"x1"`
	Y1          *float64 `mapstructure:"y1"`
	X2          *float64 `mapstructure:"x2"`
	Y2          *float64 `mapstructure:"y2"`
	X           *float64 `mapstructure:"x"`
	Y           *float64 `mapstructure:"y"`
	RUDY        *float64 `mapstructure:"rudy"`
	Resistance  *float64 `mapstructure:"resistance"`
	Capacitance *float64 `mapstructure:"capacitance"`
}

func (*InterconnectSegment) Kind() string { return schema.KindInterconnectSegment }

type point struct{ x, y float64 }

// endpoints returns the segment end points that have both coordinates
func (s *InterconnectSegment) endpoints() []point {
	if s == nil {
		return nil
	}
	var pts []point
	if s.X1 != nil && s.Y1 != nil {
		pts = append(pts, point{*s.X1, *s.Y1})
	}
	if s.X2 != nil && s.Y2 != nil {
		pts = append(pts, point{*s.X2, *s.Y2})
	}
	return pts
}

// AddSegment adds a segment node
func (n *Interconnect) AddSegment(s *InterconnectSegment) error {
	if n.Segments == nil {
		n.Segments = make(map[string]*InterconnectSegment)
	}
	if s.Name == "" || n.Graph().HasNode(s.Name) {
		return errors.Newf("net %s: segment name %q is empty or already used", n.Name, s.Name).
			Component("entity").
			Category(errors.CategoryValidation).
			Build()
	}
	n.Graph().AddNode(s.Name, graph.Attrs{NodeTypeAttr: NodeNetSegment})
	n.Segments[s.Name] = s
	return nil
}

// ConnectSegments adds an edge in both directions between every pair of
// segments that share an end point.
func (n *Interconnect) ConnectSegments() {
	ids := n.Graph().NodeIDs()
	for _, a := range ids {
		pa := n.Segments[a].endpoints()
		for _, b := range ids {
			if a == b {
				continue
			}
			if touches(pa, n.Segments[b].endpoints()) {
				// both are nodes
				_ = n.Graph().AddEdge(a, b, nil)
			}
		}
	}
}

func touches(a, b []point) bool {
	for _, p := range a {
		for _, q := range b {
			if p == q {
				return true
			}
		}
	}
	return false
}

// UpdateGeometry derives the half-perimeter wire length, bounding box and
// RUDY of the net from its segments. It is a no-op for unrouted nets.
func (n *Interconnect) UpdateGeometry() {
	if len(n.Segments) == 0 {
		return
	}
	var hwpl float64
	xMin, yMin := math.Inf(1), math.Inf(1)
	xMax, yMax := math.Inf(-1), math.Inf(-1)
	for _, s := range n.Segments {
		if s.Length != nil {
			hwpl += *s.Length
		}
		for _, p := range s.endpoints() {
			xMin, xMax = min(xMin, p.x), max(xMax, p.x)
			yMin, yMax = min(yMin, p.y), max(yMax, p.y)
		}
	}
	n.HWPL = Float(hwpl)
	if math.IsInf(xMin, 1) {
		return
	}
	n.XMin, n.XMax, n.YMin, n.YMax = Float(xMin), Float(xMax), Float(yMin), Float(yMax)
	n.RUDY = Float(RUDY(xMin, xMax, yMin, yMax))
}

// RUDY is the rectangular uniform wire density of a net bounding box,
// w*h/(w+h). A degenerate box with w+h == 0 yields 0.
func RUDY(xMin, xMax, yMin, yMax float64) float64 {
	w := xMax - xMin
	h := yMax - yMin
	if w+h == 0 {
		return 0
	}
	return w * h / (w + h)
}
