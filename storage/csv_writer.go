package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"marketplace-watcher/models"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// CSVWriter exports a snapshot as CSV, one row per listing sorted by URL.
// Used by the export command and the /get/data.csv endpoint.
//
// CSV columns: url, name, price_current, price_old, location, kilometers, image_url, last_checked
type CSVWriter struct {
	path string
}

func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Write saves the snapshot to the writer's file, creating its directory.
func (w *CSVWriter) Write(snap models.Snapshot) error {
	// Create output directory if needed (e.g. "exports/" folder)
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("could not create output dir: %w", err)
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer file.Close()

	return WriteCSV(file, snap)
}

func WriteCSV(out io.Writer, snap models.Snapshot) error {
	// csv.NewWriter handles quoting, commas inside fields, line endings
	writer := csv.NewWriter(out)

	// Header row
	writer.Write([]string{"url", "name", "price_current", "price_old", "location", "kilometers", "image_url", "last_checked"})

	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys) // map order is random; sorted rows diff cleanly between exports

	for _, k := range keys {
		r := snap[k]
		lastChecked := ""
		if r.LastChecked > 0 {
			lastChecked = strconv.FormatInt(r.LastChecked, 10)
		}
		writer.Write([]string{
			r.URL,
			r.Name,
			r.Price.Current,
			r.Price.Old,
			r.Location,
			r.Kilometers,
			r.ImageURL,
			lastChecked,
		})
	}

	writer.Flush() // IMPORTANT: must flush or rows stay in the buffer

	// Check if any writes failed
	if err := writer.Error(); err != nil {
		return fmt.Errorf("csv write error: %w", err)
	}
	return nil
}
