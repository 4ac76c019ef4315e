package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

const sampleCSV = `SNO,Phase,Heater_Profile,BME1_Temp,BME1_Hum
1,Puff,322,23.4,45.6
2,Puff,322,23.6,45.8
3,Pre-Puff,338,21.0,40.0
`

func mustParse(t *testing.T, text string) *state.Dataset {
	t.Helper()

	ds, err := state.Parse("test.csv", text)
	require.NoError(t, err)
	return ds
}
