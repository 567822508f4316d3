// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "territorios",
	Short: "segmentación de territorios comerciales",
	Long: `
territorios agrupa registros georreferenciados (profesionales, clientes,
puntos de venta) en territorios contiguos y balanceados, usando clustering
jerárquico de Ward restringido a un grafo de vecinos más cercanos.
`,
	SilenceUsage: true,
}

var Version = "dev"

func userAgent() string {
	return fmt.Sprintf("territorios/%s (+https://github.com/jcodagnone/territorios)", Version)
}

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
