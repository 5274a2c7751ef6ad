package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sentinel-antinuke/internal/antinuke"
)

var ErrNegativeThreshold = errors.New("threshold must not be negative")

const (
	columnAdmins      = "admins"
	columnWhitelisted = "whitelisted"
)

func (s *Store) GetPolicy(ctx context.Context, guildID string, module antinuke.ModuleID) (antinuke.Policy, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT punishment, threshold FROM antinuke_modules
		WHERE guild_id = ? AND module = ?
	`, guildID, string(module))

	var punishment string
	var threshold int
	if err := row.Scan(&punishment, &threshold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		return ErrNegativeThreshold
	}
	return retryOp(defaultRetryConfig, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO antinuke_modules (guild_id, module, punishment, threshold)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(guild_id, module) DO UPDATE SET
				punishment = excluded.punishment,
				threshold = excluded.threshold
		`, guildID, string(module), string(policy.Punishment), policy.Threshold)
		return err
	})
}

func (s *Store) DisableModule(ctx context.Context, guildID string, module antinuke.ModuleID) error {
	return retryOp(defaultRetryConfig, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM antinuke_modules WHERE guild_id = ? AND module = ?`, guildID, string(module))
		return err
	})
}

func (s *Store) ListModules(ctx context.Context, guildID string) (map[antinuke.ModuleID]antinuke.Policy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT module, punishment, threshold FROM antinuke_modules
		WHERE guild_id = ? ORDER BY module
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
	row := s.db.QueryRowContext(ctx, `SELECT owner_id, admins, whitelisted FROM antinuke WHERE guild_id = ?`, guildID)

	var owner, admins, whitelisted string
	if err := row.Scan(&owner, &admins, &whitelisted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return antinuke.Exemptions{}, nil
		}
		return antinuke.Exemptions{}, err
	}

	result := antinuke.Exemptions{Owner: owner}
	var err error
	if result.Admins, err = DecodeIDs(admins); err != nil {
		return antinuke.Exemptions{}, fmt.Errorf("decode admins: %w", err)
	}
	if result.Whitelisted, err = DecodeIDs(whitelisted); err != nil {
		return antinuke.Exemptions{}, fmt.Errorf("decode whitelisted: %w", err)
	}
	return result, nil
}

func (s *Store) GetLogChannel(ctx context.Context, guildID string) (string, error) {
	return s.getText(ctx, `SELECT logs FROM antinuke WHERE guild_id = ?`, guildID)
}

func (s *Store) GetOwner(ctx context.Context, guildID string) (string, error) {
	return s.getText(ctx, `SELECT owner_id FROM antinuke WHERE guild_id = ?`, guildID)
}

func (s *Store) SetLogChannel(ctx context.Context, guildID, channelID string) error {
	return retryOp(defaultRetryConfig, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO antinuke (guild_id, logs) VALUES (?, ?)
			ON CONFLICT(guild_id) DO UPDATE SET logs = excluded.logs
		`, guildID, channelID)
		return err
	})
}

func (s *Store) SetOwner(ctx context.Context, guildID, userID string) error {
	return retryOp(defaultRetryConfig, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO antinuke (guild_id, owner_id) VALUES (?, ?)
			ON CONFLICT(guild_id) DO UPDATE SET owner_id = excluded.owner_id
		`, guildID, userID)
		return err
	})
}

func (s *Store) AddWhitelist(ctx context.Context, guildID, userID string) error {
	return s.updateIDs(ctx, guildID, columnWhitelisted, func(ids []string) []string { return AddID(ids, userID) })
}

func (s *Store) RemoveWhitelist(ctx context.Context, guildID, userID string) error {
	return s.updateIDs(ctx, guildID, columnWhitelisted, func(ids []string) []string { return RemoveID(ids, userID) })
}

func (s *Store) AddAdmin(ctx context.Context, guildID, userID string) error {
	return s.updateIDs(ctx, guildID, columnAdmins, func(ids []string) []string { return AddID(ids, userID) })
}

func (s *Store) RemoveAdmin(ctx context.Context, guildID, userID string) error {
	return s.updateIDs(ctx, guildID, columnAdmins, func(ids []string) []string { return RemoveID(ids, userID) })
}

func (s *Store) getText(ctx context.Context, query, guildID string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, query, guildID).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// updateIDs rewrites one JSON list column inside a transaction. column is
// always one of the package constants.
func (s *Store) updateIDs(ctx context.Context, guildID, column string, mutate func([]string) []string) error {
	return retryOp(defaultRetryConfig, func() (err error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		if _, err = tx.ExecContext(ctx, `INSERT INTO antinuke (guild_id) VALUES (?) ON CONFLICT(guild_id) DO NOTHING`, guildID); err != nil {
			return err
		}
		var raw string
		if err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM antinuke WHERE guild_id = ?`, column), guildID).Scan(&raw); err != nil {
			return err
		}
		ids, err := DecodeIDs(raw)
		if err != nil {
			return fmt.Errorf("decode %s: %w", column, err)
		}
		encoded, err := EncodeIDs(mutate(ids))
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE antinuke SET %s = ? WHERE guild_id = ?`, column), encoded, guildID); err != nil {
			return err
		}
		return tx.Commit()
	})
}
