package schema

// Entity kinds
const (
	KindNetlist             = "netlist"
	KindCellMetrics         = "cell_metrics"
	KindAreaMetrics         = "area_metrics"
	KindPowerMetrics        = "power_metrics"
	KindCriticalPathMetrics = "critical_path_metrics"
	KindIOPort              = "io_port"
	KindGate                = "gate"
	KindStandardCell        = "standard_cell"
	KindInterconnect        = "interconnect"
	KindInterconnectSegment = "interconnect_segment"
	KindTimingPath          = "timing_path"
	KindTimingPoint         = "timing_point"
	KindClockTree           = "clock_tree"
	KindPowerProfile        = "netlist_power_profile"
)

// Design flow phases a netlist snapshot belongs to
const (
	PhaseFloorplan = "floorplan"
	PhasePlace     = "place"
	PhaseCTS       = "cts"
	PhaseRoute     = "route"
)

// Phases lists the flow phases in order
var Phases = []string{PhaseFloorplan, PhasePlace, PhaseCTS, PhaseRoute}

// PathTypes are the timing analysis corners a path is reported for
var PathTypes = []string{"min", "max"}

// Units used by physical columns
const (
	unitLength      = "um"
	unitArea        = "um^2"
	unitPower       = "uW"
	unitTime        = "ns"
	unitCapacitance = "pF"
	unitResistance  = "kOhm"
	unitDensity     = "1/um^2"
)

// entityDefinitions declares every entity kind in registration order.
func entityDefinitions() []EntityDef {
	return []EntityDef{
		{
			Kind:  KindNetlist,
			Title: "Netlist",
			Graph: true,
			Columns: []Column{
				optNum("width", unitLength),
				optNum("height", unitLength),
				count("no_of_inputs"),
				count("no_of_outputs"),
				count("no_of_cells"),
				count("no_of_nets"),
				optNum("cell_density", unitDensity),
				optNum("pin_density", unitDensity),
				optNum("net_density", unitDensity),
			},
		},
		{
			Kind:  KindCellMetrics,
			Title: "Cell metrics",
			Columns: []Column{
				count("no_of_combinational_cells"),
				count("no_of_sequential_cells"),
				count("no_of_buffers"),
				count("no_of_inverters"),
				count("no_of_macros"),
				count("no_of_total_cells"),
			},
		},
		{
			Kind:  KindAreaMetrics,
			Title: "Area metrics",
			Columns: []Column{
				num("combinational_cell_area", unitArea),
				num("sequential_cell_area", unitArea),
				num("buffer_area", unitArea),
				num("inverter_area", unitArea),
				num("macro_area", unitArea),
				num("cell_area", unitArea),
				optNum("net_area", unitArea),
				num("total_area", unitArea),
			},
		},
		{
			Kind:  KindPowerMetrics,
			Title: "Power metrics",
			Columns: []Column{
				num("combinational_power", unitPower),
				num("sequential_power", unitPower),
				num("macro_power", unitPower),
				num("internal_power", unitPower),
				num("switching_power", unitPower),
				num("leakage_power", unitPower),
				num("total_power", unitPower),
			},
		},
		{
			Kind:  KindCriticalPathMetrics,
			Title: "Critical path metrics",
			Columns: []Column{
				str("startpoint"),
				str("endpoint"),
				num("worst_arrival_time", unitTime),
				num("worst_slack", unitTime),
				num("total_negative_slack", unitTime),
				count("no_of_timing_paths"),
				count("no_of_slack_violations"),
			},
		},
		{
			Kind:  KindIOPort,
			Title: "I/O port",
			Columns: []Column{
				str("name"),
				str("direction"),
				optNum("x", unitLength),
				optNum("y", unitLength),
				optNum("capacitance", unitCapacitance),
			},
		},
		{
			Kind:  KindGate,
			Title: "Gate",
			Columns: []Column{
				str("name"),
				str("standard_cell"),
				count("no_of_fanins"),
				count("no_of_fanouts"),
				optNum("x", unitLength),
				optNum("y", unitLength),
			},
		},
		{
			Kind:  KindStandardCell,
			Title: "Standard cell",
			Columns: []Column{
				str("name"),
				num("width", unitLength),
				num("height", unitLength),
				count("no_of_input_pins"),
				count("no_of_output_pins"),
				boolean("is_sequential"),
				boolean("is_inverter"),
				boolean("is_buffer"),
				optNum("drive_strength", ""),
				optNum("input_capacitance_min", unitCapacitance),
				optNum("input_capacitance_max", unitCapacitance),
				optNum("input_capacitance_mean", unitCapacitance),
				optNum("output_capacitance_min", unitCapacitance),
				optNum("output_capacitance_max", unitCapacitance),
				optNum("output_capacitance_mean", unitCapacitance),
				optNum("leakage_power_min", unitPower),
				optNum("leakage_power_max", unitPower),
				num("leakage_power_provided", unitPower),
			},
		},
		{
			Kind:  KindInterconnect,
			Title: "Interconnect",
			Graph: true,
			Columns: []Column{
				str("name"),
				count("no_of_inputs"),
				count("no_of_outputs"),
				optNum("x_min", unitLength),
				optNum("y_min", unitLength),
				optNum("x_max", unitLength),
				optNum("y_max", unitLength),
				optNum("hwpl", unitLength),
				optNum("rudy", ""),
				optNum("resistance", unitResistance),
				optNum("capacitance", unitCapacitance),
			},
		},
		{
			Kind:  KindInterconnectSegment,
			Title: "Interconnect segment",
			Columns: []Column{
				str("name"),
				optNum("length", unitLength),
				optNum("x1", unitLength),
				optNum("y1", unitLength),
				optNum("x2", unitLength),
				optNum("y2", unitLength),
				optNum("x", unitLength),
				optNum("y", unitLength),
				optNum("rudy", ""),
				optNum("resistance", unitResistance),
				optNum("capacitance", unitCapacitance),
			},
		},
		{
			Kind:  KindTimingPath,
			Title: "Timing path",
			Graph: true,
			Columns: []Column{
				str("startpoint"),
				str("endpoint"),
				enum("path_type", PathTypes...),
				count("sort_index"),
				num("arrival_time", unitTime),
				num("required_time", unitTime),
				num("slack", unitTime),
				count("no_of_gates"),
				boolean("is_critical_path"),
			},
		},
		{
			Kind:  KindTimingPoint,
			Title: "Timing point",
			Columns: []Column{
				str("name"),
				num("cell_delay", unitTime),
				num("arrival_time", unitTime),
				num("slew", unitTime),
				boolean("is_rise_transition"),
				boolean("is_fall_transition"),
				count("node_depth"),
			},
		},
		{
			Kind:  KindClockTree,
			Title: "Clock tree",
			Graph: true,
			Columns: []Column{
				count("no_of_buffers"),
				count("no_of_clock_sinks"),
			},
		},
		{
			Kind:    KindPowerProfile,
			Title:   "Netlist power profile",
			Columns: powerProfileColumns(),
		},
	}
}

// powerProfileColumns expands internal/switching/leakage/total power for
// each power group.
func powerProfileColumns() []Column {
	groups := []string{"io_pad", "memory", "black_box", "clock_network", "register", "sequential", "combinational"}
	components := []string{"internal", "switching", "leakage", "total"}
	columns := make([]Column, 0, len(groups)*len(components))
	for _, group := range groups {
		for _, component := range components {
			columns = append(columns, num(component+"_"+group, unitPower))
		}
	}
	return columns
}
