package schema

import (
	"slices"
	"strings"

	"github.com/edaschema/edaschema/internal/errors"
)

// NetlistKey identifies one netlist snapshot of a circuit
type NetlistKey struct {
	Circuit   string
	NetlistID string
	Phase     string
}

// String returns the graph key circuit-netlist_id-phase
func (k NetlistKey) String() string {
	return k.Circuit + "-" + k.NetlistID + "-" + k.Phase
}

// Validate rejects empty parts and unknown phases
func (k NetlistKey) Validate() error {
	if k.Circuit == "" || k.NetlistID == "" {
		return errors.Newf("netlist key %q: circuit and netlist_id are required", k.String()).
			Component("schema").
			Category(errors.CategoryValidation).
			Build()
	}
	if !slices.Contains(Phases, k.Phase) {
		return errors.Newf("netlist key %q: phase must be one of %s", k.String(), strings.Join(Phases, ", ")).
			Component("schema").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// Columns returns the key as circuit/netlist_id/phase column values
func (k NetlistKey) Columns() map[string]any {
	return map[string]any{
		ColumnCircuit:   k.Circuit,
		ColumnNetlistID: k.NetlistID,
		ColumnPhase:     k.Phase,
	}
}

// NetlistKeyFromRow reads the key columns of a table row
func NetlistKeyFromRow(row map[string]any) NetlistKey {
	var k NetlistKey
	k.Circuit, _ = row[ColumnCircuit].(string)
	k.NetlistID, _ = row[ColumnNetlistID].(string)
	k.Phase, _ = row[ColumnPhase].(string)
	return k
}

// TimingPathGraphKey is the graph key of a timing path
func TimingPathGraphKey(k NetlistKey, startpoint, endpoint, pathType string) string {
	return k.String() + "-" + startpoint + "-" + endpoint + "-" + pathType
}

// ClockTreeGraphKey is the graph key of the clock tree driven by source
func ClockTreeGraphKey(k NetlistKey, source string) string {
	return k.String() + "-" + source
}

// NetGraphKey is the graph key of a routed net
func NetGraphKey(k NetlistKey, net string) string {
	return k.String() + "-" + net
}
