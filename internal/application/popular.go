package application

import (
	"context"
	"slices"
	"strings"

	"github.com/hyeonwkim/passdir/internal/domain/model"
)

// recentLogWindow is how many search-log entries the ranker analyzes.
const recentLogWindow = 500

// Popular returns up to limit visible records ranked by how often recent
// successful searches matched them. Records a query matched accumulate that
// query's frequency; a record can collect credit from several distinct
// queries. Scored records sort by score descending with ties broken by
// service name; any remaining slots fill from the unscored records in
// catalog order, so the result is deterministic end to end.
func (s *DirectoryService) Popular(ctx context.Context, limit int, userGroups []string) []model.ServiceRecord {
	if limit <= 0 {
		return []model.ServiceRecord{}
	}

	logs, err := s.searchLogs.ListRecent(ctx, recentLogWindow)
	if err != nil {
		// Ranking degrades to catalog order rather than failing the request.
		s.logger.Warn("failed to load search logs for ranking", "error", err)
		logs = nil
	}

	scores := scoreByQueryFrequency(s.catalog.Services(ctx), logs)

	var scored, unscored []model.ServiceRecord
	for _, record := range s.catalog.Services(ctx) {
		if !s.perms.Visible(record, userGroups) {
			continue
		}
		if scores[record.ID] > 0 {
			scored = append(scored, record)
		} else {
			unscored = append(unscored, record)
		}
	}

	slices.SortStableFunc(scored, func(a, b model.ServiceRecord) int {
		if d := scores[b.ID] - scores[a.ID]; d != 0 {
			return d
		}
		return strings.Compare(a.ServiceName, b.ServiceName)
	})

	result := scored
	if len(result) < limit {
		result = append(result, unscored[:min(limit-len(result), len(unscored))]...)
	}
	if len(result) > limit {
		result = result[:limit]
	}
	if result == nil {
		result = []model.ServiceRecord{}
	}
	return result
}

// scoreByQueryFrequency builds each record's popularity score: the sum of
// frequencies of every successful lowercased query that appears as a
// substring of the record's name or URL.
func scoreByQueryFrequency(services []model.ServiceRecord, logs []model.SearchLog) map[string]int {
	queryCounts := make(map[string]int)
	for _, entry := range logs {
		if entry.Success && entry.Query != "" {
			queryCounts[strings.ToLower(entry.Query)]++
		}
	}

	scores := make(map[string]int, len(services))
	for _, record := range services {
		name := strings.ToLower(record.ServiceName)
		url := strings.ToLower(record.URL)
		for query, count := range queryCounts {
			if strings.Contains(name, query) || strings.Contains(url, query) {
				scores[record.ID] += count
			}
		}
	}
	return scores
}
