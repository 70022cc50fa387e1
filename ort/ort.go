// Public domain.

// Package ort writes reduced reflectivity curves in the ORSO .ort text
// exchange format: a YAML metadata header, every line prefixed "# ",
// followed by four whitespace-separated numeric columns Qz, R, sR, sQz.
package ort

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"reflred/phys"
	"reflred/reduce"
)

// magic is the mandatory first line of every .ort file.
const magic = "# # ORSO reflectivity data file | 0.1 standard | YAML encoding | https://www.reflectometry.org/"

// Software identifies the reduction software.
type Software struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
}

// Person is an ORSO person record.
type Person struct {
	Name        string `yaml:"name"`
	Contact     string `yaml:"contact,omitempty"`
	Affiliation string `yaml:"affiliation,omitempty"`
}

// Experiment describes the measurement campaign.
type Experiment struct {
	Title      string `yaml:"title,omitempty"`
	Instrument string `yaml:"instrument"`
	Facility   string `yaml:"facility,omitempty"`
	StartDate  string `yaml:"start_date,omitempty"`
	Probe      string `yaml:"probe"`
}

// Sample names the measured sample.
type Sample struct {
	Name string `yaml:"name"`
}

// Measurement lists the raw files behind the curve.
type Measurement struct {
	DataFiles       []string `yaml:"data_files"`
	AdditionalFiles []string `yaml:"additional_files,omitempty"`
}

// DataSource groups the provenance metadata.
type DataSource struct {
	Owner       Person      `yaml:"owner"`
	Experiment  Experiment  `yaml:"experiment"`
	Sample      Sample      `yaml:"sample"`
	Measurement Measurement `yaml:"measurement"`
}

// Reduction records how the data was processed, including the ordered
// list of applied corrections.
type Reduction struct {
	Software    Software  `yaml:"software"`
	Timestamp   time.Time `yaml:"timestamp"`
	Creator     *Person   `yaml:"creator,omitempty"`
	Corrections []string  `yaml:"corrections"`
}

// Column describes one numeric column.
type Column struct {
	Name             string `yaml:"name"`
	Unit             string `yaml:"unit,omitempty"`
	PhysicalQuantity string `yaml:"physical_quantity,omitempty"`
}

// Header is the full .ort metadata block.
type Header struct {
	DataSource DataSource `yaml:"data_source"`
	Reduction  Reduction  `yaml:"reduction"`
	Columns    []Column   `yaml:"columns"`
}

// NewHeader returns a header with the standard reflectivity column set
// and the given corrections, timestamped now.
func NewHeader(corrections []string) Header {
	return Header{
		Reduction: Reduction{
			Software:    Software{Name: "reflred"},
			Timestamp:   time.Now().UTC(),
			Corrections: corrections,
		},
		Columns: []Column{
			{Name: "Qz", Unit: "1/angstrom", PhysicalQuantity: "wavevector transfer"},
			{Name: "R", PhysicalQuantity: "reflectivity"},
			{Name: "sR", PhysicalQuantity: "standard deviation of reflectivity"},
			{Name: "sQz", Unit: "1/angstrom", PhysicalQuantity: "standard deviation of wavevector transfer resolution"},
		},
	}
}

// Write serializes the curve with its header to w.  Rows are ordered by
// ascending Q; masked bins and rows with any non-finite value among the
// four columns are dropped.  The curve must carry variances and a Q
// resolution, both 1-D and aligned with the Q grid.
func Write(w io.Writer, h Header, curve reduce.ReflectivityOverQ) error {
	n := curve.Q.NBins()
	if curve.R.Len() != n {
		return &phys.DimensionError{Op: "ort reflectivity column", Want: n, Got: curve.R.Len()}
	}
	if curve.R.Variances == nil {
		return fmt.Errorf("ort: reflectivity carries no variances")
	}
	if curve.QResolution.Len() != n {
		return &phys.DimensionError{Op: "ort resolution column", Want: n, Got: curve.QResolution.Len()}
	}
	qz, err := curve.Q.Mids().Convert(phys.PerAngstrom)
	if err != nil {
		return fmt.Errorf("ort Q column: %w", err)
	}
	sqz, err := curve.QResolution.Convert(phys.PerAngstrom)
	if err != nil {
		return fmt.Errorf("ort resolution column: %w", err)
	}

	type row struct{ q, r, sr, sq float64 }
	rows := make([]row, 0, n)
	for i := 0; i < n; i++ {
		rw := row{
			q:  qz.Values[i],
			r:  curve.R.Values[i],
			sr: math.Sqrt(curve.R.Variances[i]),
			sq: sqz.Values[i],
		}
		if curve.Masked(i) || !finite(rw.q) || !finite(rw.r) || !finite(rw.sr) || !finite(rw.sq) {
			continue
		}
		rows = append(rows, rw)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].q < rows[j].q })

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, magic)
	meta, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("ort header: %w", err)
	}
	for _, line := range strings.Split(strings.TrimRight(string(meta), "\n"), "\n") {
		fmt.Fprintln(bw, "# "+line)
	}
	fmt.Fprintln(bw, "# "+columnBanner(h.Columns))
	for _, rw := range rows {
		fmt.Fprintf(bw, "%-22.12e %-22.12e %-22.12e %-22.12e\n", rw.q, rw.r, rw.sr, rw.sq)
	}
	return bw.Flush()
}

func columnBanner(cols []Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.Name
		if c.Unit != "" {
			parts[i] += " (" + c.Unit + ")"
		}
	}
	return "# " + strings.Join(parts, " \t ")
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
