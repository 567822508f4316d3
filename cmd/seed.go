// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jcodagnone/territorios/segmentation"
	"github.com/spf13/cobra"
)

const seedFile = "cmd/testdata/seed.csv"

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seeds the database with a segmentation of cmd/testdata/seed.csv",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(dbPath, 0o750); err != nil {
				return fmt.Errorf("creating db directory: %w", err)
			}

			return seedDatabase(cmd.Context(), filepath.Join(dbPath, dbFile), seedFile)
		},
	}
}

func init() {
	rootCmd.AddCommand(newSeedCmd())
}

func seedDatabase(ctx context.Context, dbPath, csvPath string) error {
	// remove old db if it exists
	_ = os.Remove(dbPath)
	_ = os.Remove(dbPath + ".wal")

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repo := segmentation.NewRunRepository(db)
	if err := repo.CreateSchema(); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	opts := segmentation.DefaultOptions()

	ds, report, err := loadDataset(ctx, csvPath, opts, &sourceOptions{})
	if err != nil {
		return err
	}

	res, err := segmentation.Segment(ctx, ds, opts)
	if err != nil {
		return fmt.Errorf("failed to segment %s: %w", csvPath, err)
	}

	if err := repo.SaveRun(segmentation.NewRun(sourceName(csvPath), report, res), res); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	fmt.Println("Database seeded successfully.")

	return nil
}
