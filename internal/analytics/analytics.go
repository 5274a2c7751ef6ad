package analytics

import (
	"context"
	"sort"
	"strings"
	"time"

	"sentinel-antinuke/internal/storage"
)

const (
	EventPunish = "antinuke_punish"
	EventFailed = "antinuke_failed"
)

type Source interface {
	ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]storage.AuditLog, error)
}

type Service struct {
	store Source
}

func New(store Source) *Service {
	return &Service{store: store}
}

type Report struct {
	GuildID  string         `json:"guild_id"`
	Since    time.Time      `json:"since"`
	Total    int            `json:"total"`
	Punished int            `json:"punished"`
	Failed   int            `json:"failed"`
	ByLevel  map[string]int `json:"by_level"`
	ByModule map[string]int `json:"by_module"`
	ByKind   map[string]int `json:"by_kind"`
	TopUsers []UserCount    `json:"top_users"`
}

type UserCount struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

const topUsers = 5

// Report aggregates the antinuke audit trail of a guild since the given time.
func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		GuildID:  guildID,
		Since:    since,
		ByLevel:  make(map[string]int),
		ByModule: make(map[string]int),
		ByKind:   make(map[string]int),
	}
	users := make(map[string]int)
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++

		switch log.Event {
		case EventPunish:
			report.Punished++
		case EventFailed:
			report.Failed++
		default:
			continue
		}
		fields := ParseDetails(log.Details)
		if module := fields["module"]; module != "" {
			report.ByModule[module]++
		}
		if kind := fields["kind"]; kind != "" {
			report.ByKind[kind]++
		}
		if log.UserID != "" {
			users[log.UserID]++
		}
	}

	for userID, count := range users {
		report.TopUsers = append(report.TopUsers, UserCount{UserID: userID, Count: count})
	}
	sort.Slice(report.TopUsers, func(i, j int) bool {
		if report.TopUsers[i].Count != report.TopUsers[j].Count {
			return report.TopUsers[i].Count > report.TopUsers[j].Count
		}
		return report.TopUsers[i].UserID < report.TopUsers[j].UserID
	})
	if len(report.TopUsers) > topUsers {
		report.TopUsers = report.TopUsers[:topUsers]
	}
	return report, nil
}

// ParseDetails reads the key=value pairs the engine writes into audit
// details. Module names contain spaces, so a value runs until the next key.
func ParseDetails(details string) map[string]string {
	fields := make(map[string]string)
	var key string
	var value []string
	flush := func() {
		if key != "" {
			fields[key] = strings.Join(value, " ")
		}
	}
	for _, token := range strings.Fields(details) {
		if k, v, ok := strings.Cut(token, "="); ok && k != "" && !strings.ContainsAny(k, ":") {
			flush()
			key, value = k, []string{v}
			continue
		}
		if key != "" {
			value = append(value, token)
		}
	}
	flush()
	return fields
}
