package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `SNO,Phase,Heater_Profile,BME1_Temp,BME1_Hum
1,Puff,322,23.4,45.6
2,Puff,322,23.6,45.8
3,Pre-Puff,338,21.0,40.0
`

func TestParse(t *testing.T) {
	t.Parallel()

	ds, err := Parse("run1.csv", sampleCSV)
	require.NoError(t, err)

	assert.Equal(t, "run1.csv", ds.Name)
	assert.Equal(t, []string{"SNO", "Phase", "Heater_Profile", "BME1_Temp", "BME1_Hum"}, ds.Header)
	require.Equal(t, 3, ds.Len())
	assert.Empty(t, ds.Skipped)

	row := ds.Rows[2]
	assert.Equal(t, "Pre-Puff", row.Get("Phase"))
	assert.Equal(t, "21.0", row.At(3))
	assert.Equal(t, 2, row.Index())
	assert.Equal(t, 5, row.Len())

	_, ok := row.Lookup("Missing")
	assert.False(t, ok)
	assert.Empty(t, row.Get("Missing"))
	assert.Empty(t, row.At(99))

	assert.Equal(t, 3, ds.ColumnIndex("BME1_Temp"))
	assert.Equal(t, -1, ds.ColumnIndex("bme1_temp"))
	assert.Equal(t, []string{"Puff", "Puff", "Pre-Puff"}, ds.Column(1))
}

func TestParse_ValuesAreCopies(t *testing.T) {
	t.Parallel()

	ds, err := Parse("x.csv", "a,b\n1,2\n")
	require.NoError(t, err)

	vals := ds.Rows[0].Values()
	vals[0] = "changed"
	assert.Equal(t, "1", ds.Rows[0].Get("a"))
}

func TestParse_SkipsMalformedRows(t *testing.T) {
	t.Parallel()

	ds, err := Parse("bad.csv", "a,b\n1,2\n3\n4,5\n6,7,8\n")
	require.NoError(t, err)

	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "4", ds.Rows[1].Get("a"))
	assert.Equal(t, 1, ds.Rows[1].Index())

	require.Len(t, ds.Skipped, 2)
	assert.Equal(t, MalformedRow{Line: 3, Reason: "expected 2 fields, got 1"}, ds.Skipped[0])
	assert.Equal(t, 5, ds.Skipped[1].Line)
}

func TestParse_StrayQuoteStaysOnItsLine(t *testing.T) {
	t.Parallel()

	ds, err := Parse("x.csv", "SNO,Phase,Temp\n1,Puff,20\n2,\"Puff,21\n3,Puff,22\n4,Puff,23\n5,Puff,24\n")
	require.NoError(t, err)

	require.Equal(t, 4, ds.Len())
	assert.Equal(t, []string{"1", "3", "4", "5"}, ds.Column(0))
	require.Len(t, ds.Skipped, 1)
	assert.Equal(t, 3, ds.Skipped[0].Line)
}

func TestParse_EveryLineKeptOrSkipped(t *testing.T) {
	t.Parallel()

	input := "a,b\n1,2\n\"3,4\n5,\"6\n7,8,\"\n\r\n9,10\r\n"
	ds, err := Parse("mixed.csv", input)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "5", "9"}, ds.Column(0))
	assert.Equal(t, "6", ds.Rows[1].Get("b"))
	assert.Equal(t, "10", ds.Rows[2].Get("b"))

	lines := make([]int, 0, len(ds.Skipped))
	for _, s := range ds.Skipped {
		lines = append(lines, s.Line)
	}
	assert.Equal(t, []int{3, 5}, lines)
}

func TestParse_KeepsRawCells(t *testing.T) {
	t.Parallel()

	ds, err := Parse("raw.csv", "Phase,Temp\n Puff,20\nPuff, 21\n")
	require.NoError(t, err)

	assert.Equal(t, []string{" Puff", "Puff"}, ds.Column(0))
	assert.Equal(t, " 21", ds.Rows[1].Get("Temp"))
}

func TestParse_SkipsBlankLines(t *testing.T) {
	t.Parallel()

	ds, err := Parse("blank.csv", "\na,b\n\n1,2\n3\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ds.Header)
	require.Equal(t, 1, ds.Len())
	require.Len(t, ds.Skipped, 1)
	assert.Equal(t, 5, ds.Skipped[0].Line)
}

func TestParse_HeaderCleanup(t *testing.T) {
	t.Parallel()

	ds, err := Parse("bom.csv", "\ufeffSNO, BME1_Temp ,Phase\n1,20.5,Puff\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"SNO", "BME1_Temp", "Phase"}, ds.Header)
	assert.Equal(t, "20.5", ds.Rows[0].Get("BME1_Temp"))
}

func TestParse_QuotedFields(t *testing.T) {
	t.Parallel()

	ds, err := Parse("q.csv", "Phase,Note\n\"Puff, long\",\"said \"\"hi\"\"\"\n")
	require.NoError(t, err)

	require.Equal(t, 1, ds.Len())
	assert.Equal(t, "Puff, long", ds.Rows[0].Get("Phase"))
	assert.Equal(t, `said "hi"`, ds.Rows[0].Get("Note"))
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "unnamed header", input: ",,\n1,2,3\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tt.name, tt.input)
			require.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	t.Parallel()

	ds, err := ParseReader("h.csv", strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Zero(t, ds.Len())
}

func TestFromRecords(t *testing.T) {
	t.Parallel()

	ds, err := FromRecords("readings", []string{"id", "temp"}, [][]string{
		{"1", "20"},
		{"2"},
		{"3", "22"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Len())
	require.Len(t, ds.Skipped, 1)
	assert.Equal(t, 3, ds.Skipped[0].Line)
	assert.Equal(t, "22", ds.Rows[1].Get("temp"))
}

func TestSubset_KeepsIndexAndHeader(t *testing.T) {
	t.Parallel()

	ds, err := Parse("run1.csv", sampleCSV)
	require.NoError(t, err)

	sub := ds.Subset([]Row{ds.Rows[2]})
	assert.Equal(t, ds.Header, sub.Header)
	require.Equal(t, 1, sub.Len())
	assert.Equal(t, 2, sub.Rows[0].Index())
	assert.Equal(t, 1, sub.ColumnIndex("Phase"))
	assert.Empty(t, sub.Skipped)
}
