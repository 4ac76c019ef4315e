package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileColumn(t *testing.T) {
	t.Parallel()

	ds := mustParse(t, "a,b,c\n1,x,\n2,NA,\n2,y,null\n")

	a := ProfileColumn(ds, 0)
	assert.Equal(t, KindNumeric, a.Kind)
	assert.Equal(t, 3, a.NumericCount)
	assert.Equal(t, 2, a.DistinctCount)
	assert.Zero(t, a.MissingCount)

	b := ProfileColumn(ds, 1)
	assert.Equal(t, KindCategorical, b.Kind)
	assert.Equal(t, 1, b.MissingCount)
	assert.Equal(t, 2, b.DistinctCount)

	c := ProfileColumn(ds, 2)
	assert.Equal(t, KindEmpty, c.Kind)
	assert.Equal(t, 3, c.MissingCount)
	assert.Equal(t, 3, c.TotalRows)
}

func TestProfileColumns_TagsSensors(t *testing.T) {
	t.Parallel()

	ds := mustParse(t, sampleCSV)
	profiles := ProfileColumns(ds, DefaultAliases())
	require.Len(t, profiles, len(ds.Header))

	assert.Empty(t, profiles[0].Sensor)
	assert.Equal(t, KindCategorical, profiles[1].Kind)
	assert.Equal(t, KindNumeric, profiles[2].Kind)
	assert.Equal(t, "Temperature", profiles[3].Sensor)
	assert.Equal(t, "Humidity", profiles[4].Sensor)
}
