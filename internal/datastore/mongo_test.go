package datastore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/edaschema/edaschema/internal/graph"
)

func TestNormalizeAttrsMatchesJSON(t *testing.T) {
	t.Parallel()

	decoded := graph.Attrs{
		"fanout": int32(3),
		"area":   1.5,
		"cap":    int64(7),
		"pos":    bson.D{{Key: "x", Value: int32(10)}, {Key: "y", Value: 2.5}},
		"pins":   bson.A{"A", bson.D{{Key: "name", Value: "B"}, {Key: "width", Value: int32(1)}}},
		"cell":   "NAND2_X1",
	}
	want := graph.Attrs{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"fanout": 3, "area": 1.5, "cap": 7,
		"pos": {"x": 10, "y": 2.5},
		"pins": ["A", {"name": "B", "width": 1}],
		"cell": "NAND2_X1"
	}`), &want))

	assert.Equal(t, want, normalizeAttrs(decoded))
	assert.Nil(t, normalizeAttrs(nil))
}
