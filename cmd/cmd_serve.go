// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/jcodagnone/territorios/segmentation"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expone la segmentación y las corridas guardadas por HTTP",
	Long: `Levanta un servidor HTTP con la API de segmentación:

  POST   /api/segment                        sube un CSV (campo file) y lo segmenta
  GET    /api/runs                           lista las corridas guardadas
  GET    /api/runs/:id                       detalle de una corrida
  DELETE /api/runs/:id                       borra una corrida
  GET    /api/runs/:id/assignments           territorio de cada registro
  GET    /api/runs/:id/merges                historial de fusiones
  GET    /api/runs/:id/levels/:k             asignaciones con k territorios
  GET    /api/runs/:id/export.csv            exportación CSV
  GET    /api/runs/:id/territories.geojson   exportación GeoJSON
  GET    /metrics                            métricas Prometheus
`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		opts, err := resolveOptions(segmentCmd.Flags(), segmentFlags)
		if err != nil {
			return err
		}

		db, repo, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		server := segmentation.NewServer(repo, opts)

		fmt.Println("🗺️  Territory segmentation server starting...")
		fmt.Printf("📍 Listening on %s\n", serveAddr)

		return server.Run(serveAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.PersistentFlags().StringVar(&serveAddr, "addr", "localhost:8080", "Dirección donde escuchar")
	serveCmd.PersistentFlags().StringVar(&segmentFlags.ConfigPath, "config", "", "Archivo YAML con las opciones por defecto")
}
