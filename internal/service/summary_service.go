package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// UnknownChannel is shown when a channel title cannot be resolved.
const UnknownChannel = "unknown channel"

// ChannelNamer resolves a channel id to a human-readable title.
type ChannelNamer interface {
	ChannelTitle(ctx context.Context, channelID int64) (string, error)
}

// SummaryService builds the per-channel task count overview.
type SummaryService struct {
	tasks *TaskService
	names ChannelNamer
	log   *slog.Logger
}

func NewSummaryService(tasks *TaskService, names ChannelNamer, log *slog.Logger) *SummaryService {
	return &SummaryService{tasks: tasks, names: names, log: log}
}

type channelCount struct {
	title string
	count int64
}

// Summary lists task counts for every channel that has tasks. member limits
// the counts to one assignee.
func (s *SummaryService) Summary(ctx context.Context, member *string, now time.Time) (string, error) {
	counts, err := s.tasks.CountTasksAllChannels(ctx, member)
	if err != nil {
		return "", err
	}

	rows := make([]channelCount, 0, len(counts))
	for channelID, n := range counts {
		if n == 0 {
			continue
		}
		title, err := s.names.ChannelTitle(ctx, channelID)
		if err != nil || strings.TrimSpace(title) == "" {
			s.log.Debug("resolve channel title", "channel_id", channelID, "error", err)
			title = UnknownChannel
		}
		rows = append(rows, channelCount{title: title, count: n})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].title < rows[j].title
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Tasks by channel</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))
	if len(rows) == 0 {
		builder.WriteString("☕ no tasks\n")
		return strings.TrimSpace(builder.String()), nil
	}
	for _, row := range rows {
		builder.WriteString(fmt.Sprintf("| %s | : %d\n", html.EscapeString(row.title), row.count))
	}
	return strings.TrimSpace(builder.String()), nil
}
