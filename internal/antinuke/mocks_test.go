package antinuke

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubStore is an in-memory ConfigStore.
type stubStore struct {
	mu          sync.Mutex
	policies    map[ModuleID]Policy
	exemptions  Exemptions
	logChannel  string
	owner       string
	policyErr   error
	policyReads int
}

func newStubStore() *stubStore {
	return &stubStore{policies: make(map[ModuleID]Policy)}
}

func (s *stubStore) GetPolicy(_ context.Context, _ string, module ModuleID) (Policy, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policyReads++
	if s.policyErr != nil {
		return Policy{}, false, s.policyErr
	}
	policy, ok := s.policies[module]
	return policy, ok, nil
}

func (s *stubStore) GetExemptions(context.Context, string) (Exemptions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exemptions, nil
}

func (s *stubStore) GetLogChannel(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logChannel, nil
}

func (s *stubStore) GetOwner(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner, nil
}

func (s *stubStore) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policyReads
}

type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) Guild(ctx context.Context, guildID string) (GuildInfo, error) {
	args := m.Called(ctx, guildID)
	return args.Get(0).(GuildInfo), args.Error(1)
}

func (m *MockPlatform) Member(ctx context.Context, guildID, userID string) (Member, error) {
	args := m.Called(ctx, guildID, userID)
	return args.Get(0).(Member), args.Error(1)
}

func (m *MockPlatform) Ban(ctx context.Context, guildID, userID, reason string) error {
	args := m.Called(ctx, guildID, userID, reason)
	return args.Error(0)
}

func (m *MockPlatform) Kick(ctx context.Context, guildID, userID, reason string) error {
	args := m.Called(ctx, guildID, userID, reason)
	return args.Error(0)
}

func (m *MockPlatform) StripRoles(ctx context.Context, guildID, userID, reason string) error {
	args := m.Called(ctx, guildID, userID, reason)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendChannel(ctx context.Context, channelID string, report Report) error {
	args := m.Called(ctx, channelID, report)
	return args.Error(0)
}

func (m *MockNotifier) SendDirect(ctx context.Context, userID string, report Report) error {
	args := m.Called(ctx, userID, report)
	return args.Error(0)
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAuditor) Log(_ context.Context, level, _, _, event, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, level+":"+event)
	return nil
}

func (a *recordingAuditor) snapshot() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}
