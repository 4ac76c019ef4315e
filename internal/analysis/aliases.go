package analysis

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CurrentSchemaVersion is the alias file schema understood by LoadAliases.
const CurrentSchemaVersion = 1

var (
	ErrInvalidAliases = errors.New("invalid alias table")
)

// Sensor is a logical measurement channel and the header spellings that
// different hardware revisions use for it.
type Sensor struct {
	Name     string   `yaml:"name" json:"name"`
	Unit     string   `yaml:"unit,omitempty" json:"unit,omitempty"`
	Aliases  []string `yaml:"aliases" json:"aliases"`
	Contains []string `yaml:"contains,omitempty" json:"contains,omitempty"`
}

// ResolvedSensor is a sensor found in a concrete header.
type ResolvedSensor struct {
	Name   string `json:"name"`
	Column string `json:"column"`
	Index  int    `json:"index"`
	Unit   string `json:"unit,omitempty"`
}

// AliasTable maps header spellings to logical sensors.
type AliasTable struct {
	SchemaVersion int      `yaml:"schema_version"`
	Sensors       []Sensor `yaml:"sensors"`

	lookup   map[string]int // normalized name or alias -> sensor position
	aliases  [][]string
	contains [][]string
}

// DefaultAliases returns the table for the BME688/SGP41/SCD41 boards used so
// far. Revision 1 boards prefix the BME channels with BME1_, later ones with
// BME_ or BME.
func DefaultAliases() *AliasTable {
	t := &AliasTable{
		SchemaVersion: CurrentSchemaVersion,
		Sensors: []Sensor{
			{
				Name:     "Temperature",
				Unit:     "°C",
				Aliases:  []string{"BME1_TEMP", "BME_TEMP", "BMETEMP", "TEMP", "TEMP_C", "TEMPERATURE_C"},
				Contains: []string{"TEMP"},
			},
			{
				Name:     "Humidity",
				Unit:     "%RH",
				Aliases:  []string{"BME1_HUM", "BME_HUM", "BMEHUM", "HUM", "RH", "HUMIDITY_RH"},
				Contains: []string{"HUM"},
			},
			{
				Name:     "Pressure",
				Unit:     "hPa",
				Aliases:  []string{"BME1_PRES", "BME1_PRESS", "BME_PRES", "BME_PRESS", "BMEPRES", "PRES", "PRESSURE_HPA"},
				Contains: []string{"PRES"},
			},
			{
				Name:     "GasResistance",
				Unit:     "Ω",
				Aliases:  []string{"BME1_GAS", "BME_GAS", "BMEGAS", "GAS", "GAS_RES", "GASRES", "GAS_RESISTANCE"},
				Contains: []string{"GAS"},
			},
			{
				Name:     "VOC",
				Aliases:  []string{"SGP_VOC", "SGP41_VOC", "VOC_INDEX", "VOCINDEX", "TVOC"},
				Contains: []string{"VOC"},
			},
			{
				Name:     "NOx",
				Aliases:  []string{"SGP_NOX", "SGP41_NOX", "NOX_INDEX", "NOXINDEX"},
				Contains: []string{"NOX"},
			},
			{
				Name:     "CO2",
				Unit:     "ppm",
				Aliases:  []string{"SCD_CO2", "SCD41_CO2", "ECO2", "CO2_PPM"},
				Contains: []string{"CO2"},
			},
		},
	}
	if err := t.compile(); err != nil {
		panic(err) // the built-in table is static
	}
	return t
}

// LoadAliases reads an alias table from a YAML file.
func LoadAliases(path string) (*AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}

	var t AliasTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse alias file %s: %w", path, err)
	}
	if t.SchemaVersion == 0 {
		t.SchemaVersion = CurrentSchemaVersion
	}
	if t.SchemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: schema_version %d is newer than %d", ErrInvalidAliases, t.SchemaVersion, CurrentSchemaVersion)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *AliasTable) compile() error {
	if len(t.Sensors) == 0 {
		return fmt.Errorf("%w: no sensors", ErrInvalidAliases)
	}

	t.lookup = make(map[string]int)
	t.aliases = make([][]string, len(t.Sensors))
	t.contains = make([][]string, len(t.Sensors))

	for i, s := range t.Sensors {
		name := Normalize(s.Name)
		if name == "" {
			return fmt.Errorf("%w: sensor %d has no name", ErrInvalidAliases, i)
		}
		if j, dup := t.lookup[name]; dup {
			return fmt.Errorf("%w: %q also names sensor %q", ErrInvalidAliases, s.Name, t.Sensors[j].Name)
		}
		t.lookup[name] = i

		for _, a := range s.Aliases {
			na := Normalize(a)
			if na == "" {
				continue
			}
			if j, dup := t.lookup[na]; dup && j != i {
				return fmt.Errorf("%w: alias %q claimed by %q and %q", ErrInvalidAliases, a, t.Sensors[j].Name, s.Name)
			}
			t.lookup[na] = i
			t.aliases[i] = append(t.aliases[i], na)
		}
		for _, c := range s.Contains {
			if nc := Normalize(c); nc != "" {
				t.contains[i] = append(t.contains[i], nc)
			}
		}
	}
	return nil
}

// Sensor returns the sensor a name or alias refers to.
func (t *AliasTable) Sensor(name string) (Sensor, bool) {
	i, ok := t.lookup[Normalize(name)]
	if !ok {
		return Sensor{}, false
	}
	return t.Sensors[i], true
}

// Resolve returns the header index holding the logical sensor, or NotFound.
// An exact normalized match on the name wins over alias matches, and alias
// matches win over substring matches.
func (t *AliasTable) Resolve(logical string, header []string) int {
	return t.resolve(logical, NormalizeHeader(header), nil)
}

// Find resolves name like Resolve and reports the canonical sensor name.
// Names that are not in the table keep the header spelling.
func (t *AliasTable) Find(name string, header []string) (ResolvedSensor, bool) {
	idx := t.Resolve(name, header)
	if idx == NotFound {
		return ResolvedSensor{}, false
	}

	rs := ResolvedSensor{Name: header[idx], Column: header[idx], Index: idx}
	if s, ok := t.Sensor(name); ok {
		rs.Name, rs.Unit = s.Name, s.Unit
	} else if s, ok := t.Sensor(header[idx]); ok {
		rs.Name, rs.Unit = s.Name, s.Unit
	}
	return rs, true
}

// ResolveAll lists the table's sensors present in header, in table order.
// A column is claimed by at most one sensor.
func (t *AliasTable) ResolveAll(header []string) []ResolvedSensor {
	norm := NormalizeHeader(header)
	claimed := make(map[int]bool)

	var out []ResolvedSensor
	for _, s := range t.Sensors {
		idx := t.resolve(s.Name, norm, claimed)
		if idx == NotFound {
			continue
		}
		claimed[idx] = true
		out = append(out, ResolvedSensor{Name: s.Name, Column: header[idx], Index: idx, Unit: s.Unit})
	}
	return out
}

func (t *AliasTable) resolve(logical string, norm []string, claimed map[int]bool) int {
	target := Normalize(logical)

	for i, h := range norm {
		if h == target && !claimed[i] {
			return i
		}
	}

	si, ok := t.lookup[target]
	if !ok {
		return NotFound
	}

	for _, a := range t.aliases[si] {
		for i, h := range norm {
			if h == a && !claimed[i] {
				return i
			}
		}
	}
	for _, c := range t.contains[si] {
		for i, h := range norm {
			if strings.Contains(h, c) && !claimed[i] {
				return i
			}
		}
	}
	return NotFound
}
