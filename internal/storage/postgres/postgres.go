// Package postgres is the Postgres backend for deployments that share one
// configuration database between several bot processes.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sentinel-antinuke/internal/antinuke"
	"sentinel-antinuke/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Backend = (*Store)(nil)

func New(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, guildID string, module antinuke.ModuleID) (antinuke.Policy, bool, error) {
	var punishment string
	var threshold int
	err := s.pool.QueryRow(ctx, `
		SELECT punishment, threshold FROM antinuke_modules
		WHERE guild_id = $1 AND module = $2
	`, guildID, string(module)).Scan(&punishment, &threshold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return antinuke.Policy{}, false, nil
		}
		return antinuke.Policy{}, false, err
	}
	kind, err := antinuke.ParsePunishment(punishment)
	if err != nil {
		return antinuke.Policy{}, false, fmt.Errorf("module %s: %w", module, err)
	}
	return antinuke.Policy{Threshold: threshold, Punishment: kind}, true, nil
}

func (s *Store) SetModule(ctx context.Context, guildID string, module antinuke.ModuleID, policy antinuke.Policy) error {
	if policy.Threshold < 0 {
		return storage.ErrNegativeThreshold
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO antinuke_modules (guild_id, module, punishment, threshold)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, module) DO UPDATE SET
			punishment = EXCLUDED.punishment,
			threshold = EXCLUDED.threshold
	`, guildID, string(module), string(policy.Punishment), policy.Threshold)
	return err
}

func (s *Store) DisableModule(ctx context.Context, guildID string, module antinuke.ModuleID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM antinuke_modules WHERE guild_id = $1 AND module = $2`, guildID, string(module))
	return err
}

func (s *Store) ListModules(ctx context.Context, guildID string) (map[antinuke.ModuleID]antinuke.Policy, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT module, punishment, threshold FROM antinuke_modules
		WHERE guild_id = $1 ORDER BY module
	`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	modules := make(map[antinuke.ModuleID]antinuke.Policy)
	for rows.Next() {
		var module, punishment string
		var threshold int
		if err := rows.Scan(&module, &punishment, &threshold); err != nil {
			return nil, err
		}
		kind, err := antinuke.ParsePunishment(punishment)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", module, err)
		}
		modules[antinuke.ModuleID(module)] = antinuke.Policy{Threshold: threshold, Punishment: kind}
	}
	return modules, rows.Err()
}

func (s *Store) GetExemptions(ctx context.Context, guildID string) (antinuke.Exemptions, error) {
	var owner, admins, whitelisted string
	err := s.pool.QueryRow(ctx, `SELECT owner_id, admins, whitelisted FROM antinuke WHERE guild_id = $1`, guildID).
		Scan(&owner, &admins, &whitelisted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return antinuke.Exemptions{}, nil
		}
		return antinuke.Exemptions{}, err
	}

	result := antinuke.Exemptions{Owner: owner}
	if result.Admins, err = storage.DecodeIDs(admins); err != nil {
		return antinuke.Exemptions{}, fmt.Errorf("decode admins: %w", err)
	}
	if result.Whitelisted, err = storage.DecodeIDs(whitelisted); err != nil {
		return antinuke.Exemptions{}, fmt.Errorf("decode whitelisted: %w", err)
	}
	return result, nil
}

func (s *Store) GetLogChannel(ctx context.Context, guildID string) (string, error) {
	return s.getText(ctx, `SELECT logs FROM antinuke WHERE guild_id = $1`, guildID)
}

func (s *Store) GetOwner(ctx context.Context, guildID string) (string, error) {
	return s.getText(ctx, `SELECT owner_id FROM antinuke WHERE guild_id = $1`, guildID)
}

func (s *Store) SetLogChannel(ctx context.Context, guildID, channelID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO antinuke (guild_id, logs) VALUES ($1, $2)
		ON CONFLICT (guild_id) DO UPDATE SET logs = EXCLUDED.logs
	`, guildID, channelID)
	return err
}

func (s *Store) SetOwner(ctx context.Context, guildID, userID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO antinuke (guild_id, owner_id) VALUES ($1, $2)
		ON CONFLICT (guild_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
	`, guildID, userID)
	return err
}

func (s *Store) AddWhitelist(ctx context.Context, guildID, userID string) error {
	return s.updateIDs(ctx, guildID, "whitelisted", func(ids []string) []string { return storage.AddID(ids, userID) })
}

func (s *Store) RemoveWhitelist(ctx context.Context, guildID, userID string) error {
	return s.updateIDs(ctx, guildID, "whitelisted", func(ids []string) []string { return storage.RemoveID(ids, userID) })
}

func (s *Store) AddAdmin(ctx context.Context, guildID, userID string) error {
	return s.updateIDs(ctx, guildID, "admins", func(ids []string) []string { return storage.AddID(ids, userID) })
}

func (s *Store) RemoveAdmin(ctx context.Context, guildID, userID string) error {
	return s.updateIDs(ctx, guildID, "admins", func(ids []string) []string { return storage.RemoveID(ids, userID) })
}

func (s *Store) AddAuditLog(ctx context.Context, log storage.AuditLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (guild_id, user_id, level, event, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, log.GuildID, log.UserID, log.Level, log.Event, log.Details, log.CreatedAt.Unix())
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]storage.AuditLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, guild_id, user_id, level, event, details, created_at
		FROM audit_logs
		WHERE guild_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []storage.AuditLog
	for rows.Next() {
		var log storage.AuditLog
		var created int64
		if err := rows.Scan(&log.ID, &log.GuildID, &log.UserID, &log.Level, &log.Event, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) CleanupAuditLogs(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.pool.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff.Unix())
	return err
}

func (s *Store) getText(ctx context.Context, query, guildID string) (string, error) {
	var value string
	if err := s.pool.QueryRow(ctx, query, guildID).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *Store) updateIDs(ctx context.Context, guildID, column string, mutate func([]string) []string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO antinuke (guild_id) VALUES ($1) ON CONFLICT (guild_id) DO NOTHING`, guildID); err != nil {
			return err
		}
		var raw string
		if err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM antinuke WHERE guild_id = $1 FOR UPDATE`, column), guildID).Scan(&raw); err != nil {
			return err
		}
		ids, err := storage.DecodeIDs(raw)
		if err != nil {
			return fmt.Errorf("decode %s: %w", column, err)
		}
		encoded, err := storage.EncodeIDs(mutate(ids))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE antinuke SET %s = $1 WHERE guild_id = $2`, column), encoded, guildID)
		return err
	})
}
