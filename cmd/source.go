// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jcodagnone/territorios/segmentation"
	"github.com/jcodagnone/territorios/utils/httputils"
)

type sourceOptions struct {
	EnableHTTPTrace     bool
	EnableHTTPBodyTrace bool
	Timeout             time.Duration
}

func isURL(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}

// openSource opens a local file, a URL or stdin ("-").
func openSource(ctx context.Context, arg string, opts *sourceOptions) (io.ReadCloser, io.Reader, error) {
	if arg == "-" {
		return io.NopCloser(os.Stdin), os.Stdin, nil
	}

	if !isURL(arg) {
		f, err := os.Open(arg) // #nosec G304 - path is provided by the operator
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", arg, err)
		}

		return f, f, nil
	}

	client := httputils.NewClient(httputils.ClientOptions{
		UserAgent: userAgent(),
		Timeout:   opts.Timeout,
		Trace:     opts.EnableHTTPTrace,
		TraceBody: opts.EnableHTTPBodyTrace,
	})

	resp, err := httputils.Fetch(ctx, client, arg)
	if err != nil {
		return nil, nil, err
	}

	body, err := httputils.AsReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()

		return nil, nil, err
	}

	return resp.Body, body, nil
}

// loadDataset reads arg with the schema of opts.
func loadDataset(ctx context.Context, arg string, opts segmentation.Options, src *sourceOptions) (*segmentation.Dataset, *segmentation.LoadReport, error) {
	closer, r, err := openSource(ctx, arg, src)
	if err != nil {
		return nil, nil, err
	}
	defer closer.Close()

	ds, report, err := segmentation.ReadCSV(r, opts.Schema())
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", arg, err)
	}

	return ds, report, nil
}

func sourceName(arg string) string {
	if arg == "-" || isURL(arg) {
		return arg
	}

	return filepath.Base(arg)
}
