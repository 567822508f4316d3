// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/jcodagnone/territorios/spatial"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultClusters     = 5
	DefaultNeighbors    = 5
	DefaultMinRecords   = 5
	DefaultIDColumn     = "hcp_id"
	DefaultH3Resolution = 7
)

// DefaultAttributes are the attribute columns used when none are configured.
var DefaultAttributes = []string{"trx_count"}

// Options configures a segmentation.
type Options struct {
	Clusters     int      `yaml:"clusters" json:"clusters"`
	Neighbors    int      `yaml:"neighbors" json:"neighbors"`
	IDColumn     string   `yaml:"id_column" json:"id_column"`
	Attributes   []string `yaml:"attributes" json:"attributes"`
	Projection   string   `yaml:"projection" json:"projection"`
	H3Resolution int      `yaml:"h3_resolution" json:"h3_resolution"`
	// Workers bounds the kNN graph build. 0 means one per CPU.
	Workers    int `yaml:"workers" json:"workers"`
	MinRecords int `yaml:"min_records" json:"min_records"`

	// Progress is forwarded to the clustering engine.
	Progress func(done, total int) `yaml:"-" json:"-"`
}

// DefaultOptions returns the options used by the CLI and the server when
// nothing else is configured.
func DefaultOptions() Options {
	return Options{
		Clusters:     DefaultClusters,
		Neighbors:    DefaultNeighbors,
		IDColumn:     DefaultIDColumn,
		Attributes:   append([]string(nil), DefaultAttributes...),
		Projection:   spatial.AlbersConusName,
		H3Resolution: DefaultH3Resolution,
		Workers:      runtime.NumCPU(),
		MinRecords:   DefaultMinRecords,
	}
}

// Schema returns the columns to read for these options.
func (o Options) Schema() Schema {
	return Schema{IDColumn: o.IDColumn, Attributes: o.Attributes}
}

// Validate checks the values that do not depend on the input size. The
// engine checks the rest.
func (o Options) Validate() error {
	var errs []error

	if o.Clusters < 1 {
		errs = append(errs, fmt.Errorf("%w: clusters must be at least 1, got %d", ErrInvalidOptions, o.Clusters))
	}

	if o.Neighbors < 1 {
		errs = append(errs, fmt.Errorf("%w: neighbors must be at least 1, got %d", ErrInvalidOptions, o.Neighbors))
	}

	if o.IDColumn == "" {
		errs = append(errs, fmt.Errorf("%w: id column is required", ErrInvalidOptions))
	}

	if o.H3Resolution < 0 || o.H3Resolution > spatial.MaxH3Resolution {
		errs = append(errs, fmt.Errorf("%w: h3 resolution must be in [0, %d], got %d",
			ErrInvalidOptions, spatial.MaxH3Resolution, o.H3Resolution))
	}

	if o.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidOptions, o.Workers))
	}

	if o.MinRecords < 0 {
		errs = append(errs, fmt.Errorf("%w: min records must not be negative, got %d", ErrInvalidOptions, o.MinRecords))
	}

	if _, err := spatial.ProjectionByName(o.Projection); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LoadOptions reads a YAML options file on top of base. Keys missing from
// the file keep the value from base.
func LoadOptions(path string, base Options) (Options, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return base, fmt.Errorf("opening options file: %w", err)
	}
	defer f.Close()

	return DecodeOptions(f, base)
}

// DecodeOptions is LoadOptions over a reader.
func DecodeOptions(r io.Reader, base Options) (Options, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return base, fmt.Errorf("reading options: %w", err)
	}

	opts := base
	opts.Attributes = append([]string(nil), base.Attributes...)

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("%w: parsing options: %w", ErrInvalidOptions, err)
	}

	return opts, nil
}
