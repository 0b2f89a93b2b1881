package search

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/export"
	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
)

// Export re-runs q without pagination and writes the results to the export
// directory. Task searches use the task columns. It returns the file path.
func (s *Service) Export(ctx context.Context, q Query, format string) (string, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	if f == export.FormatPDF {
		return "", fmt.Errorf("%w: pdf", apperrors.ErrUnsupportedFormat)
	}

	q.Limit = s.cfg.ExportLimit
	q.Offset = 0
	resp := s.execute(ctx, q.withDefaults(s.cfg.DefaultLimit, 0))

	var table export.Table
	if q.Scope == ScopeTasks {
		table = export.TaskTable(s.tasksFor(ctx, resp.Results), s.now())
	} else {
		rows := make([]export.Row, 0, len(resp.Results))
		for _, r := range resp.Results {
			rows = append(rows, export.Row{
				Type:      string(r.RecordType),
				Title:     r.Title,
				Summary:   r.Summary,
				Relevance: r.RelevanceScore,
				Key:       r.RecordKey,
			})
		}
		table = export.ResultTable(rows)
	}

	path := filepath.Join(s.cfg.ExportDir, export.FileName(s.now(), f))
	if err := export.WriteFile(path, f, table); err != nil {
		return "", fmt.Errorf("exporting search results: %w", err)
	}
	s.logger.Info("search results exported", "path", path, "format", f, "results", resp.Total)
	return path, nil
}
