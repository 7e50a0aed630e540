package usecases

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/geomap/internal/core/domain"
)

const importConcurrency = 4

// ImportReport summarises a bulk import.
type ImportReport struct {
	Rows     int
	Stored   int
	Cleared  int
	Rejected []ImportError
}

// ImportError is a row that could not be stored.
type ImportError struct {
	Line int
	Key  string
	Err  error
}

func (e ImportError) Error() string {
	return fmt.Sprintf("line %d (key %s): %v", e.Line, e.Key, e.Err)
}

// LocationImporter writes geolocation values from CSV files. The file has
// a key column and the attribute's import column (see
// AttributeSchema.ImportColumns).
type LocationImporter struct {
	locations *LocationService
	log       *slog.Logger
}

// NewLocationImporter creates a new LocationImporter.
func NewLocationImporter(locations *LocationService, log *slog.Logger) *LocationImporter {
	if log == nil {
		log = slog.Default()
	}
	return &LocationImporter{locations: locations, log: log}
}

type importRow struct {
	line int
	key  string
	text string
}

// Import stores every row of r into attribute code of class. Rows with
// unparsable values are rejected and reported; the others are stored. An
// error is returned only when the file or the attribute is unusable.
func (i *LocationImporter) Import(ctx context.Context, r io.Reader, class, code string) (ImportReport, error) {
	attr, err := i.locations.Attribute(ctx, class, code)
	if err != nil {
		return ImportReport{}, err
	}

	rows, err := readImportRows(r, attr)
	if err != nil {
		return ImportReport{}, err
	}

	var (
		mu     sync.Mutex
		report = ImportReport{Rows: len(rows)}
		failed = make([]*ImportError, len(rows))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)
	for idx, row := range rows {
		g.Go(func() error {
			ref := domain.EntityRef{Class: class, Key: row.key}
			ev, err := i.locations.SetText(gctx, ref, code, row.text)
			if err != nil {
				if !IsClientError(err) && !errors.Is(err, domain.ErrNotFound) {
					i.log.Warn("import row failed", "line", row.line, "key", row.key, "error", err)
				}
				failed[idx] = &ImportError{Line: row.line, Key: row.key, Err: err}
				return nil
			}
			mu.Lock()
			if ev.Value == nil {
				report.Cleared++
			} else {
				report.Stored++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, e := range failed {
		if e != nil {
			report.Rejected = append(report.Rejected, *e)
		}
	}
	return report, ctx.Err()
}

func readImportRows(r io.Reader, attr domain.AttributeSchema) ([]importRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	keyCol, valueCol := -1, -1
	column := attr.ImportColumns()[0].Name
	for idx, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "key", "id":
			keyCol = idx
		case strings.ToLower(column):
			valueCol = idx
		}
	}
	if keyCol < 0 {
		return nil, fmt.Errorf("%w: key", domain.ErrMissingColumn)
	}
	if valueCol < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, column)
	}

	var rows []importRow
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if keyCol >= len(rec) || valueCol >= len(rec) || strings.TrimSpace(rec[keyCol]) == "" {
			continue
		}
		rows = append(rows, importRow{line: line, key: strings.TrimSpace(rec[keyCol]), text: rec[valueCol]})
	}
	return rows, nil
}
