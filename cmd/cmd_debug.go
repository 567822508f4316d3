// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jcodagnone/territorios/spatial"
	"github.com/spf13/cobra"
)

// we say that it isn't.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}

	return (info.Mode() & os.ModeCharDevice) != 0
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var (
	debugProjection   string
	debugH3Resolution int
)

func parseLatLng(line string) (spatial.Point, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) != 2 {
		return spatial.Point{}, fmt.Errorf("expected \"lat lng\", got %q", line)
	}

	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return spatial.Point{}, fmt.Errorf("latitude: %w", err)
	}

	lng, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return spatial.Point{}, fmt.Errorf("longitude: %w", err)
	}

	p := spatial.Point{Lat: lat, Lng: lng}

	return p, p.Validate()
}

var debugProjectCmd = &cobra.Command{
	Use:   "project",
	Short: "Proyecta coordenadas y calcula su celda H3",
	Long: `Lee una coordenada "lat lng" por línea, e imprime en stdout la coordenada
seguida de su proyección plana en metros y su celda H3.

$ echo 40 -96 | territorios debug project
40 -96		0.00 1886977.56	<celda H3>
	`,
	RunE: func(_ *cobra.Command, _ []string) error {
		proj, err := spatial.ProjectionByName(debugProjection)
		if err != nil {
			return err
		}

		input := os.Stdin
		if isTerminal(input) {
			fmt.Fprintln(os.Stderr, "Ingrese coordenadas a proyectar, una por línea…")
		}

		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			p, err := parseLatLng(line)
			if err != nil {
				fmt.Printf("%s\t%q\n", line, err)

				continue
			}

			xy := proj.Project(p)

			cell, err := spatial.CellAt(p, debugH3Resolution)
			if err != nil {
				return err
			}

			fmt.Printf("%s\t\t%.2f %.2f\t%s\n", line, xy[0], xy[1], cell)
		}

		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugProjectCmd)
	debugCmd.AddCommand(debugGraphCmd)

	debugCmd.PersistentFlags().StringVar(&debugProjection, "projection", spatial.AlbersConusName, "Proyección plana")
	debugProjectCmd.PersistentFlags().IntVar(&debugH3Resolution, "h3-resolution", 7, "Resolución H3")
}
