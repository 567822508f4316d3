// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jcodagnone/territorios/segmentation"
	"github.com/jcodagnone/territorios/ward"
	"github.com/spf13/cobra"
)

var runsOptions = struct {
	Limit   int
	Offset  int
	Output  string
	GeoJSON string
	Level   int
}{}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Acceso a las corridas guardadas",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lista las corridas guardadas, las más recientes primero",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := repo.ListRuns(runsOptions.Limit, runsOptions.Offset)
		if err != nil {
			return err
		}

		total, err := repo.CountRuns()
		if err != nil {
			return err
		}

		a, b, c, d := strings.Repeat("─", 36), strings.Repeat("─", 19), strings.Repeat("─", 24), strings.Repeat("─", 9)
		fmt.Printf("Corridas (%d de %d):\n", len(runs), total)
		fmt.Printf("╭─%-36s─┬─%-19s─┬─%-24s─┬─%9s─┬─%9s─╮\n", a, b, c, d, d)
		fmt.Printf("│ %-36s │ %-19s │ %-24s │ %9s │ %9s │\n", "Id", "Fecha", "Origen", "Registros", "Terr.")
		fmt.Printf("├─%-36s─┼─%-19s─┼─%-24s─┼─%9s─┼─%9s─┤\n", a, b, c, d, d)

		for _, r := range runs {
			clusters := fmt.Sprintf("%d", r.Clusters)
			if r.Disconnected {
				clusters = fmt.Sprintf("%d/%d", r.Clusters, r.Requested)
			}

			fmt.Printf("│ %-36s │ %-19s │ %-24s │ %9d │ %9s │\n",
				r.ID, r.CreatedAt.Local().Format(time.DateTime), truncate(r.Source, 24), r.Records, clusters)
		}

		fmt.Printf("╰─%-36s─┴─%-19s─┴─%-24s─┴─%9s─┴─%9s─╯\n", a, b, c, d, d)

		return nil
	},
}

var runsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Exporta las asignaciones de una corrida",
	Long: `Escribe el CSV de una corrida guardada. Con --level se reconstruye la
partición que la misma corrida tenía con más territorios, sin volver a
ejecutar el clustering.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		db, repo, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := repo.GetRun(args[0])
		if err != nil {
			return err
		}

		t, err := repo.GetAssignments(run.ID)
		if err != nil {
			return err
		}

		clusters := run.Clusters
		if runsOptions.Level > 0 {
			merges, err := repo.GetMerges(run.ID)
			if err != nil {
				return err
			}

			p, err := ward.Replay(len(t.Rows), merges, runsOptions.Level)
			if err != nil {
				return err
			}

			for i := range t.Rows {
				t.Rows[i].Cluster = p.Labels[t.Rows[i].Ordinal]
			}

			clusters = p.Clusters
		}

		output := runsOptions.Output
		if output == "" {
			output = segmentation.DefaultCSVName(clusters)
		}

		if err := writeFile(output, t, segmentation.WriteCSV); err != nil {
			return err
		}

		log.Printf("✅ Wrote %s", output)

		if runsOptions.GeoJSON != "" {
			if err := writeFile(runsOptions.GeoJSON, t, segmentation.WriteGeoJSON); err != nil {
				return err
			}

			log.Printf("🗺️  Wrote %s", runsOptions.GeoJSON)
		}

		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Borra una corrida guardada",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		db, repo, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := repo.DeleteRun(args[0]); err != nil {
			return err
		}

		log.Printf("Deleted run %s", args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsDeleteCmd)

	runsListCmd.PersistentFlags().IntVar(&runsOptions.Limit, "limit", 20, "Máximo de corridas a listar")
	runsListCmd.PersistentFlags().IntVar(&runsOptions.Offset, "offset", 0, "Corridas a saltear")

	runsExportCmd.PersistentFlags().StringVarP(&runsOptions.Output, "output", "o", "", "CSV de salida. Por defecto territories_<k>.csv")
	runsExportCmd.PersistentFlags().StringVar(&runsOptions.GeoJSON, "geojson", "", "Escribe además los territorios como GeoJSON")
	runsExportCmd.PersistentFlags().IntVar(
		&runsOptions.Level,
		"level",
		0,
		"Número de territorios a reconstruir; debe ser mayor o igual al de la corrida",
	)
}
