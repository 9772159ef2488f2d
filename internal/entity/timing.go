package entity

import (
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/schema"
)

// Timing analysis corners
const (
	PathMin = "min"
	PathMax = "max"
)

// TimingPathKey identifies a timing path within a netlist
type TimingPathKey struct {
	Startpoint string
	Endpoint   string
	PathType   string
}

// TimingPath is the chain of timing points a signal traverses from
// startpoint to endpoint.
type TimingPath struct {
	GraphView `mapstructure:"-"`

	Startpoint     string  `mapstructure:"startpoint"`
	Endpoint       string  `mapstructure:"endpoint"`
	PathType       string  `mapstructure:"path_type"`
	SortIndex      int64   `mapstructure:"sort_index"`
	ArrivalTime    float64 `mapstructure:"arrival_time"`
	RequiredTime   float64 `mapstructure:"required_time"`
	Slack          float64 `mapstructure:"slack"`
	NoOfGates      int64   `mapstructure:"no_of_gates"`
	IsCriticalPath bool    `mapstructure:"is_critical_path"`

	Points map[string]*TimingPoint `mapstructure:"-"`

	last string
}

// NewTimingPath creates a path without points
func NewTimingPath() *TimingPath {
	return &TimingPath{Points: make(map[string]*TimingPoint)}
}

func (*TimingPath) Kind() string { return schema.KindTimingPath }

// Key returns the identity of the path within its netlist
func (p *TimingPath) Key() TimingPathKey {
	return TimingPathKey{Startpoint: p.Startpoint, Endpoint: p.Endpoint, PathType: p.PathType}
}

// AddPoint appends a timing point and links it from the previous one. A
// pin that reappears keeps its node and gains another incoming edge.
func (p *TimingPath) AddPoint(pt *TimingPoint) error {
	if pt.Name == "" {
		return errors.Newf("timing path %s -> %s: point without a name", p.Startpoint, p.Endpoint).
			Component("entity").
			Category(errors.CategoryValidation).
			Build()
	}
	if p.Points == nil {
		p.Points = make(map[string]*TimingPoint)
	}
	p.Graph().AddNode(pt.Name, graph.Attrs{NodeTypeAttr: NodeTimingPoint})
	p.Points[pt.Name] = pt
	if p.last != "" && p.last != pt.Name {
		if err := p.Graph().AddEdge(p.last, pt.Name, nil); err != nil {
			return err
		}
	}
	p.last = pt.Name
	return nil
}

// OrderedPoints returns the points in the order they were first added
func (p *TimingPath) OrderedPoints() []*TimingPoint {
	ids := p.Graph().NodeIDs()
	out := make([]*TimingPoint, 0, len(ids))
	for _, id := range ids {
		if pt, ok := p.Points[id]; ok {
			out = append(out, pt)
		}
	}
	return out
}

// TimingPoint is one pin along a timing path
type TimingPoint struct {
	Name             string  `mapstructure:"name"`
	CellDelay        float64 `mapstructure:"cell_delay"`
	ArrivalTime      float64 `mapstructure:"arrival_time"`
	Slew             float64 `mapstructure:"slew"`
	IsRiseTransition bool    `mapstructure:"is_rise_transition"`
	IsFallTransition bool    `mapstructure:"is_fall_transition"`
	NodeDepth        int64   `mapstructure:"node_depth"`
}

func (*TimingPoint) Kind() string { return schema.KindTimingPoint }

// SummarizeTimingPaths computes the critical path metrics over the max
// paths and marks the worst of them critical. On equal slack the later
// path wins. Min paths are ignored.
func SummarizeTimingPaths(paths []*TimingPath) (*CriticalPathMetrics, error) {
	var (
		m     CriticalPathMetrics
		worst *TimingPath
	)
	for _, p := range paths {
		if p.PathType != PathMax {
			continue
		}
		m.NoOfTimingPaths++
		if worst == nil || p.Slack <= worst.Slack {
			worst = p
		}
		if p.Slack < 0 {
			m.NoOfSlackViolations++
			m.TotalNegativeSlack += p.Slack
		}
	}
	if worst == nil {
		return nil, errors.ValidationError("no max timing paths to summarize")
	}

	worst.IsCriticalPath = true
	m.Startpoint = worst.Startpoint
	m.Endpoint = worst.Endpoint
	m.WorstSlack = worst.Slack
	m.WorstArrivalTime = worst.ArrivalTime
	return &m, nil
}
