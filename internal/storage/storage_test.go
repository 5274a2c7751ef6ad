package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"sentinel-antinuke/internal/antinuke"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestMigrateTwice(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestModulePolicyLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetPolicy(ctx, "g1", antinuke.ModuleBan); err != nil || ok {
		t.Fatalf("expected disabled module, got ok=%v err=%v", ok, err)
	}

	if err := store.SetModule(ctx, "g1", antinuke.ModuleBan, antinuke.Policy{Threshold: 3, Punishment: antinuke.PunishBan}); err != nil {
		t.Fatalf("set module: %v", err)
	}
	if err := store.SetModule(ctx, "g1", antinuke.ModuleBan, antinuke.Policy{Threshold: 2, Punishment: antinuke.PunishStripRoles}); err != nil {
		t.Fatalf("update module: %v", err)
	}

	policy, ok, err := store.GetPolicy(ctx, "g1", antinuke.ModuleBan)
	if err != nil || !ok {
		t.Fatalf("get policy: ok=%v err=%v", ok, err)
	}
	if policy.Threshold != 2 || policy.Punishment != antinuke.PunishStripRoles {
		t.Fatalf("unexpected policy %+v", policy)
	}
	if _, ok, _ := store.GetPolicy(ctx, "g2", antinuke.ModuleBan); ok {
		t.Fatalf("policy leaked across guilds")
	}

	modules, err := store.ListModules(ctx, "g1")
	if err != nil {
		t.Fatalf("list modules: %v", err)
	}
	if len(modules) != 1 || modules[antinuke.ModuleBan].Threshold != 2 {
		t.Fatalf("unexpected modules %+v", modules)
	}

	if err := store.DisableModule(ctx, "g1", antinuke.ModuleBan); err != nil {
		t.Fatalf("disable module: %v", err)
	}
	if _, ok, _ := store.GetPolicy(ctx, "g1", antinuke.ModuleBan); ok {
		t.Fatalf("expected module disabled")
	}
}

func TestSetModuleRejectsNegativeThreshold(t *testing.T) {
	store := newTestStore(t)
	err := store.SetModule(context.Background(), "g1", antinuke.ModuleKick, antinuke.Policy{Threshold: -1, Punishment: antinuke.PunishKick})
	if !errors.Is(err, ErrNegativeThreshold) {
		t.Fatalf("expected ErrNegativeThreshold, got %v", err)
	}
}

func TestExemptionLists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exemptions, err := store.GetExemptions(ctx, "g1")
	if err != nil {
		t.Fatalf("get empty exemptions: %v", err)
	}
	if exemptions.Owner != "" || len(exemptions.Admins) != 0 || len(exemptions.Whitelisted) != 0 {
		t.Fatalf("expected empty exemptions, got %+v", exemptions)
	}

	for _, id := range []string{"u1", "u2", "u1"} {
		if err := store.AddWhitelist(ctx, "g1", id); err != nil {
			t.Fatalf("add whitelist: %v", err)
		}
	}
	if err := store.AddAdmin(ctx, "g1", "a1"); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if err := store.SetOwner(ctx, "g1", "o1"); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	if err := store.RemoveWhitelist(ctx, "g1", "u1"); err != nil {
		t.Fatalf("remove whitelist: %v", err)
	}

	exemptions, err = store.GetExemptions(ctx, "g1")
	if err != nil {
		t.Fatalf("get exemptions: %v", err)
	}
	if exemptions.Owner != "o1" {
		t.Fatalf("expected owner o1, got %q", exemptions.Owner)
	}
	if len(exemptions.Whitelisted) != 1 || exemptions.Whitelisted[0] != "u2" {
		t.Fatalf("unexpected whitelist %v", exemptions.Whitelisted)
	}
	if len(exemptions.Admins) != 1 || exemptions.Admins[0] != "a1" {
		t.Fatalf("unexpected admins %v", exemptions.Admins)
	}

	if err := store.RemoveAdmin(ctx, "g1", "a1"); err != nil {
		t.Fatalf("remove admin: %v", err)
	}
	exemptions, _ = store.GetExemptions(ctx, "g1")
	if len(exemptions.Admins) != 0 {
		t.Fatalf("expected admins cleared, got %v", exemptions.Admins)
	}
}

func TestLogChannelAndOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	channel, err := store.GetLogChannel(ctx, "g1")
	if err != nil || channel != "" {
		t.Fatalf("expected no channel, got %q %v", channel, err)
	}
	if err := store.SetLogChannel(ctx, "g1", "c1"); err != nil {
		t.Fatalf("set log channel: %v", err)
	}
	if err := store.SetOwner(ctx, "g1", "o1"); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	if err := store.SetLogChannel(ctx, "g1", "c2"); err != nil {
		t.Fatalf("update log channel: %v", err)
	}

	if channel, _ := store.GetLogChannel(ctx, "g1"); channel != "c2" {
		t.Fatalf("expected c2, got %q", channel)
	}
	if owner, _ := store.GetOwner(ctx, "g1"); owner != "o1" {
		t.Fatalf("owner lost on channel update, got %q", owner)
	}
}

func TestAuditLogRetention(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := AuditLog{GuildID: "g1", UserID: "u1", Level: "CRIT", Event: "antinuke_punish", CreatedAt: now.AddDate(0, 0, -40)}
	recent := AuditLog{GuildID: "g1", UserID: "u2", Level: "WARN", Event: "antinuke_failed", CreatedAt: now}
	for _, log := range []AuditLog{old, recent} {
		if err := store.AddAuditLog(ctx, log); err != nil {
			t.Fatalf("add audit log: %v", err)
		}
	}

	logs, err := store.ListAuditLogs(ctx, "g1", now.AddDate(0, 0, -60))
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 2 || logs[0].UserID != "u2" {
		t.Fatalf("expected newest first, got %+v", logs)
	}

	if err := store.CleanupAuditLogs(ctx, 30); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	logs, _ = store.ListAuditLogs(ctx, "g1", now.AddDate(0, 0, -60))
	if len(logs) != 1 || logs[0].Event != "antinuke_failed" {
		t.Fatalf("expected only recent log, got %+v", logs)
	}
}

func TestStoreSatisfiesBackend(t *testing.T) {
	var _ Backend = newTestStore(t)
}
