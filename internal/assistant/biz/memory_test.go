package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/moktashif/internal/assistant/store"
	"github.com/kart-io/moktashif/internal/model"
	assistantopts "github.com/kart-io/moktashif/pkg/options/assistant"
)

type failingMemories struct{ store.MemoryStore }

func (failingMemories) List(context.Context, string, []model.Kind, int) ([]model.MemoryRecord, error) {
	return nil, errors.New("db down")
}

func (failingMemories) Insert(context.Context, *model.MemoryRecord) error {
	return errors.New("db down")
}

func TestMemoryStore_RelevantSplitsStrictly(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(store.NewMemoryFactory().Memories(), nil, assistantopts.NewMemoryOptions())

	m.AddTurn(ctx, "u1", "c1", "nmap scan of the dmz", model.RoleUser, nil)
	m.AddTurn(ctx, "u1", "c2", "nmap flags for udp", model.RoleUser, nil)
	m.AddTurn(ctx, "u1", "c2", "burp suite setup", model.RoleUser, nil)
	m.AddTurn(ctx, "u2", "c1", "other user", model.RoleUser, nil)

	b := m.Relevant(ctx, "u1", "nmap", "c1")
	require.Len(t, b.Current, 1)
	require.Len(t, b.Other, 2)
	assert.Equal(t, "nmap flags for udp", b.Other[0].Text)

	seen := map[string]bool{}
	for _, r := range append(b.Current, b.Other...) {
		assert.False(t, seen[r.ID], "record %s in both buckets", r.ID)
		seen[r.ID] = true
	}
}

func TestMemoryStore_RelevantRanksAndLimits(t *testing.T) {
	ctx := context.Background()
	opts := assistantopts.NewMemoryOptions()
	opts.Limit = 2
	m := NewMemoryStore(store.NewMemoryFactory().Memories(), nil, opts)

	now := time.Now()
	m.now = func() time.Time { return now }
	m.Add(ctx, model.MemoryRecord{UserID: "u", ConversationID: "c", Text: "firewall rules", CreatedAt: now.Add(-30 * 24 * time.Hour)})
	m.Add(ctx, model.MemoryRecord{UserID: "u", ConversationID: "c", Text: "firewall rules", CreatedAt: now})
	m.Add(ctx, model.MemoryRecord{UserID: "u", ConversationID: "c", Text: "unrelated", CreatedAt: now})
	m.Add(ctx, model.MemoryRecord{UserID: "u", ConversationID: "c", Text: "firewall rules", Importance: 0.8, Kind: model.KindFact, CreatedAt: now})

	b := m.Relevant(ctx, "u", "firewall", "c")
	require.Len(t, b.Current, 2)
	assert.Equal(t, model.KindFact, b.Current[0].Kind)
	assert.True(t, b.Current[1].CreatedAt.Equal(now))
	assert.Empty(t, b.Other)

	facts := m.Relevant(ctx, "u", "firewall", "c", model.KindFact)
	require.Len(t, facts.Current, 1)
}

func TestMemoryStore_FailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(failingMemories{}, &hashEmbedder{err: errors.New("embed down")}, nil)

	m.AddTurn(ctx, "u", "c", "text", model.RoleUser, nil)
	b := m.Relevant(ctx, "u", "q", "c")
	assert.True(t, b.Empty())
	assert.NotNil(t, b.Current)
}

func TestMemoryStore_HasFact(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(store.NewMemoryFactory().Memories(), nil, nil)
	m.Remember(ctx, "u", "uses pfSense", "c", "Net", model.KindFact, true, 0.8, model.TopicCybersecurity)

	assert.True(t, m.HasFact(ctx, "u", "uses pfSense"))
	assert.False(t, m.HasFact(ctx, "u", "uses OPNsense"))
	assert.False(t, m.HasFact(ctx, "other", "uses pfSense"))
}
