// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jcodagnone/territorios/segmentation"
	"github.com/jcodagnone/territorios/spatial"
	"github.com/jcodagnone/territorios/utils"
	"github.com/jcodagnone/territorios/ward"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const dbFile = "territorios.duckdb"

type segmentOptions struct {
	segmentation.Options
	sourceOptions

	ConfigPath    string
	Output        string
	GeoJSON       string
	Save          bool
	AcceptPartial bool
}

var (
	segmentFlags = &segmentOptions{Options: segmentation.DefaultOptions()}
	dbPath       string
)

var segmentCmd = &cobra.Command{
	Use:   "segment <archivo|url|->",
	Short: "Agrupa los registros de un CSV en territorios",
	Long: `Lee un CSV con un identificador, atributos numéricos, latitud y longitud,
y lo particiona en el número pedido de territorios contiguos.

Las columnas state, city y zip_code son opcionales; cuando están presentes se
incluyen en el resumen geográfico y en la exportación.

$ territorios segment hcps.csv -k 8 --attributes trx_count,visits
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := resolveOptions(cmd.Flags(), segmentFlags)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ds, report, err := loadDataset(ctx, args[0], opts, &segmentFlags.sourceOptions)
		if err != nil {
			return err
		}

		log.Printf("✅ Loaded %s records from %s (%d dropped)",
			utils.FormatInt(int64(report.Kept)), sourceName(args[0]), report.Dropped)

		bar := newProgressBar(len(ds.Records)-opts.Clusters, "Merging")
		if bar != nil {
			opts.Progress = func(done, _ int) {
				_ = bar.Set(done)
			}
		}

		res, err := segmentation.Segment(ctx, ds, opts)
		if bar != nil {
			_ = bar.Finish()
		}

		if err != nil {
			if !ward.IsDisconnectedGraph(err) || !segmentFlags.AcceptPartial {
				return err
			}

			log.Printf("⚠️  %v", err)
		}

		printSummary(os.Stdout, res)

		output := segmentFlags.Output
		if output == "" {
			output = segmentation.DefaultCSVName(res.Clusters)
		}

		if err := writeFile(output, res.Table(), segmentation.WriteCSV); err != nil {
			return err
		}

		log.Printf("✅ Wrote %s", output)

		if segmentFlags.GeoJSON != "" {
			if err := writeFile(segmentFlags.GeoJSON, res.Table(), segmentation.WriteGeoJSON); err != nil {
				return err
			}

			log.Printf("🗺️  Wrote %s", segmentFlags.GeoJSON)
		}

		if segmentFlags.Save {
			return saveRun(sourceName(args[0]), report, res)
		}

		return nil
	},
}

// resolveOptions layers defaults, the options file and the flags the user
// set explicitly, in that order.
func resolveOptions(flags *pflag.FlagSet, so *segmentOptions) (segmentation.Options, error) {
	opts := segmentation.DefaultOptions()

	if so.ConfigPath != "" {
		var err error
		if opts, err = segmentation.LoadOptions(so.ConfigPath, opts); err != nil {
			return opts, err
		}
	}

	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "clusters":
			opts.Clusters = so.Clusters
		case "neighbors":
			opts.Neighbors = so.Neighbors
		case "id-column":
			opts.IDColumn = so.IDColumn
		case "attributes":
			opts.Attributes = so.Attributes
		case "projection":
			opts.Projection = so.Projection
		case "h3-resolution":
			opts.H3Resolution = so.H3Resolution
		case "workers":
			opts.Workers = so.Workers
		case "min-records":
			opts.MinRecords = so.MinRecords
		}
	})

	return opts, opts.Validate()
}

func newProgressBar(n int, description string) *progressbar.ProgressBar {
	if n <= 0 || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}

	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func writeFile(path string, t *segmentation.Table, write func(io.Writer, *segmentation.Table) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	f, err := os.Create(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := write(f, t); err != nil {
		f.Close()

		return fmt.Errorf("writing %s: %w", path, err)
	}

	return f.Close()
}

func openDB() (*sql.DB, segmentation.RunRepository, error) {
	if err := os.MkdirAll(dbPath, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(dbPath, dbFile))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := segmentation.NewRunRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, repo, nil
}

func saveRun(source string, report *segmentation.LoadReport, res *segmentation.Result) error {
	db, repo, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run := segmentation.NewRun(source, report, res)
	if err := repo.SaveRun(run, res); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	log.Printf("✅ Saved run %s", run.ID)

	return nil
}

func printSummary(w io.Writer, res *segmentation.Result) {
	attrs := res.Dataset.Attributes
	width := 12

	line := func(left, mid, right string) {
		fmt.Fprintf(w, "%s─%s─%s─%s─%s─%s", left, strings.Repeat("─", 4), mid, strings.Repeat("─", 8), mid, strings.Repeat("─", 10))
		for range attrs {
			fmt.Fprintf(w, "─%s─%s", mid, strings.Repeat("─", width))
		}

		fmt.Fprintf(w, "─%s\n", right)
	}

	line("╭", "┬", "╮")
	fmt.Fprintf(w, "│ %4s │ %8s │ %10s", "#", "Miembros", "Radio (km)")

	for _, a := range attrs {
		fmt.Fprintf(w, " │ %*s", width, truncate(a, width))
	}

	fmt.Fprintln(w, " │")
	line("├", "┼", "┤")

	for _, t := range res.Territories {
		fmt.Fprintf(w, "│ %4d │ %8d │ %10.1f", t.Cluster, t.Size, t.RadiusMeters/1000)

		for _, v := range t.Totals {
			fmt.Fprintf(w, " │ %*.0f", width, v)
		}

		fmt.Fprintln(w, " │")
	}

	line("╰", "┴", "╯")

	fmt.Fprintf(w, "%d territorios, %d aristas, %d componentes, SSD %.4f, %v\n",
		res.Clusters, res.Edges, res.Components, res.TotalSSD(), res.Duration.Round(time.Millisecond))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n-1] + "…"
}

func init() {
	rootCmd.AddCommand(segmentCmd)
	rootCmd.PersistentFlags().StringVar(
		&dbPath,
		"db-path",
		"db",
		"Directorio base donde almacenar las corridas",
	)

	flags := segmentCmd.PersistentFlags()
	flags.IntVarP(&segmentFlags.Clusters, "clusters", "k", segmentation.DefaultClusters, "Número de territorios")
	flags.IntVar(&segmentFlags.Neighbors, "neighbors", segmentation.DefaultNeighbors, "Vecinos por registro en el grafo de contigüidad")
	flags.StringVar(&segmentFlags.IDColumn, "id-column", segmentation.DefaultIDColumn, "Columna con el identificador del registro")
	flags.StringSliceVar(&segmentFlags.Attributes, "attributes", segmentation.DefaultAttributes, "Columnas numéricas a balancear")
	flags.StringVar(
		&segmentFlags.Projection,
		"projection",
		spatial.AlbersConusName,
		"Proyección plana para las coordenadas ("+strings.Join(spatial.ProjectionNames(), ", ")+")",
	)
	flags.IntVar(&segmentFlags.H3Resolution, "h3-resolution", segmentation.DefaultH3Resolution, "Resolución H3 de las celdas exportadas")
	flags.IntVar(&segmentFlags.Workers, "workers", 0, "Goroutines para construir el grafo. Por defecto el número de CPUs")
	flags.IntVar(&segmentFlags.MinRecords, "min-records", segmentation.DefaultMinRecords, "Mínimo de registros válidos")
	flags.StringVar(&segmentFlags.ConfigPath, "config", "", "Archivo YAML con opciones; los flags explícitos tienen prioridad")
	flags.StringVarP(&segmentFlags.Output, "output", "o", "", "CSV de salida. Por defecto territories_<k>.csv")
	flags.StringVar(&segmentFlags.GeoJSON, "geojson", "", "Escribe además los territorios como GeoJSON")
	flags.BoolVar(&segmentFlags.Save, "save", false, "Guarda la corrida en la base de datos")
	flags.BoolVar(
		&segmentFlags.AcceptPartial,
		"accept-partial",
		false,
		"Acepta más territorios de los pedidos cuando el grafo está desconectado",
	)
	flags.DurationVar(&segmentFlags.Timeout, "http-timeout", time.Minute, "Timeout al descargar una URL")
	flags.BoolVar(&segmentFlags.EnableHTTPTrace, "trace-http", false, "Display HTTP requests-responses")
	flags.BoolVar(&segmentFlags.EnableHTTPBodyTrace, "trace-http-body", false, "Display HTTP requests-responses bodies")
}
