package entity

import "github.com/edaschema/edaschema/internal/schema"

// CellMetrics counts the cells of a netlist by class
type CellMetrics struct {
	NoOfCombinationalCells int64 `mapstructure:"no_of_combinational_cells"`
	NoOfSequentialCells    int64 `mapstructure:"no_of_sequential_cells"`
	NoOfBuffers            int64 `mapstructure:"no_of_buffers"`
	NoOfInverters          int64 `mapstructure:"no_of_inverters"`
	NoOfMacros             int64 `mapstructure:"no_of_macros"`
	NoOfTotalCells         int64 `mapstructure:"no_of_total_cells"`
}

func (*CellMetrics) Kind() string { return schema.KindCellMetrics }

// AreaMetrics holds cell areas by class in um^2
type AreaMetrics struct {
	CombinationalCellArea float64  `mapstructure:"combinational_cell_area"`
	SequentialCellArea    float64  `mapstructure:"sequential_cell_area"`
	BufferArea            float64  `mapstructure:"buffer_area"`
	InverterArea          float64  `mapstructure:"inverter_area"`
	MacroArea             float64  `mapstructure:"macro_area"`
	CellArea              float64  `mapstructure:"cell_area"`
	NetArea               *float64 `mapstructure:"net_area"`
	TotalArea             float64  `mapstructure:"total_area"`
}

func (*AreaMetrics) Kind() string { return schema.KindAreaMetrics }

// PowerMetrics holds power by group and component in uW
type PowerMetrics struct {
	CombinationalPower float64 `mapstructure:"combinational_power"`
	SequentialPower    float64 `mapstructure:"sequential_power"`
	MacroPower         float64 `mapstructure:"macro_power"`
	InternalPower      float64 `mapstructure:"internal_power"`
	SwitchingPower     float64 `mapstructure:"switching_power"`
	LeakagePower       float64 `mapstructure:"leakage_power"`
	TotalPower         float64 `mapstructure:"total_power"`
}

func (*PowerMetrics) Kind() string { return schema.KindPowerMetrics }

// CriticalPathMetrics summarizes the max timing paths of a netlist
type CriticalPathMetrics struct {
	Startpoint          string  `mapstructure:"startpoint"`
	Endpoint            string  `mapstructure:"endpoint"`
	WorstArrivalTime    float64 `mapstructure:"worst_arrival_time"`
	WorstSlack          float64 `mapstructure:"worst_slack"`
	TotalNegativeSlack  float64 `mapstructure:"total_negative_slack"`
	NoOfTimingPaths     int64   `mapstructure:"no_of_timing_paths"`
	NoOfSlackViolations int64   `mapstructure:"no_of_slack_violations"`
}

func (*CriticalPathMetrics) Kind() string { return schema.KindCriticalPathMetrics }

// IOPort is a primary input or output of a netlist
type IOPort struct {
	Name        string   `mapstructure:"name"`
	Direction   string   `mapstructure:"direction"`
	X           *float64 `mapstructure:"x"`
	Y           *float64 `mapstructure:"y"`
	Capacitance *float64 `mapstructure:"capacitance"`
}

func (*IOPort) Kind() string { return schema.KindIOPort }

// Gate is a placed instance of a standard cell
type Gate struct {
	Name         string   `mapstructure:"name"`
	StandardCell string   `mapstructure:"standard_cell"`
	NoOfFanins   int64    `mapstructure:"no_of_fanins"`
	NoOfFanouts  int64    `mapstructure:"no_of_fanouts"`
	X            *float64 `mapstructure:"x"`
	Y            *float64 `mapstructure:"y"`
}

func (*Gate) Kind() string { return schema.KindGate }

// StandardCell is a library cell characterization
type StandardCell struct {
	Name                  string   `mapstructure:"name"`
	Width                 float64  `mapstructure:"width"`
	Height                float64  `mapstructure:"height"`
	NoOfInputPins         int64    `mapstructure:"no_of_input_pins"`
	NoOfOutputPins        int64    `mapstructure:"no_of_output_pins"`
	IsSequential          bool     `mapstructure:"is_sequential"`
	IsInverter            bool     `mapstructure:"is_inverter"`
	IsBuffer              bool     `mapstructure:"is_buffer"`
	DriveStrength         *float64 `mapstructure:"drive_strength"`
	InputCapacitanceMin   *float64 `mapstructure:"input_capacitance_min"`
	InputCapacitanceMax   *float64 `mapstructure:"input_capacitance_max"`
	InputCapacitanceMean  *float64 `mapstructure:"input_capacitance_mean"`
	OutputCapacitanceMin  *float64 `mapstructure:"output_capacitance_min"`
	OutputCapacitanceMax  *float64 `mapstructure:"output_capacitance_max"`
	OutputCapacitanceMean *float64 `mapstructure:"output_capacitance_mean"`
	LeakagePowerMin       *float64 `mapstructure:"leakage_power_min"`
	LeakagePowerMax       *float64 `mapstructure:"leakage_power_max"`
	LeakagePowerProvided  float64  `mapstructure:"leakage_power_provided"`
}

func (*StandardCell) Kind() string { return schema.KindStandardCell }

// Area returns width * height
func (c *StandardCell) Area() float64 { return c.Width * c.Height }

// SequentialCells returns the names of the sequential cells in cells
func SequentialCells(cells map[string]*StandardCell) map[string]bool {
	seq := make(map[string]bool)
	for name, c := range cells {
		if c.IsSequential {
			seq[name] = true
		}
	}
	return seq
}

// NetlistPowerProfile breaks netlist power down by power group
type NetlistPowerProfile struct {
	InternalIOPad          float64 `mapstructure:"internal_io_pad"`
	SwitchingIOPad         float64 `mapstructure:"switching_io_pad"`
	LeakageIOPad           float64 `mapstructure:"leakage_io_pad"`
	TotalIOPad             float64 `mapstructure:"total_io_pad"`
	InternalMemory         float64 `mapstructure:"internal_memory"`
	SwitchingMemory        float64 `mapstructure:"switching_memory"`
	LeakageMemory          float64 `mapstructure:"leakage_memory"`
	TotalMemory            float64 `mapstructure:"total_memory"`
	InternalBlackBox       float64 `mapstructure:"internal_black_box"`
	SwitchingBlackBox      float64 `mapstructure:"switching_black_box"`
	LeakageBlackBox        float64 `mapstructure:"leakage_black_box"`
	TotalBlackBox          float64 `mapstructure:"total_black_box"`
	InternalClockNetwork   float64 `mapstructure:"internal_clock_network"`
	SwitchingClockNetwork  float64 `mapstructure:"switching_clock_network"`
	LeakageClockNetwork    float64 `mapstructure:"leakage_clock_network"`
	TotalClockNetwork      float64 `mapstructure:"total_clock_network"`
	InternalRegister       float64 `mapstructure:"internal_register"`
	SwitchingRegister      float64 `mapstructure:"switching_register"`
	LeakageRegister        float64 `mapstructure:"leakage_register"`
	TotalRegister          float64 `mapstructure:"total_register"`
	InternalSequential     float64 `mapstructure:"internal_sequential"`
	SwitchingSequential    float64 `mapstructure:"switching_sequential"`
	LeakageSequential      float64 `mapstructure:"leakage_sequential"`
	TotalSequential        float64 `mapstructure:"total_sequential"`
	InternalCombinational  float64 `mapstructure:"internal_combinational"`
	SwitchingCombinational float64 `mapstructure:"switching_combinational"`
	LeakageCombinational   float64 `mapstructure:"leakage_combinational"`
	TotalCombinational     float64 `mapstructure:"total_combinational"`
}

func (*NetlistPowerProfile) Kind() string { return schema.KindPowerProfile }

// Float returns a pointer to v, for nullable fields
func Float(v float64) *float64 { return &v }
