package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalIsActive(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		terminal Terminal
		want     bool
	}{
		{
			name:     "bronze within default lifetime",
			terminal: Terminal{Tier: TierBronze, Enabled: true, RegisteredAt: now.Add(-59 * 24 * time.Hour)},
			want:     true,
		},
		{
			name:     "bronze past default lifetime",
			terminal: Terminal{Tier: TierBronze, Enabled: true, RegisteredAt: now.Add(-61 * 24 * time.Hour)},
			want:     false,
		},
		{
			name:     "bronze explicit expiry in the future overrides lifetime",
			terminal: Terminal{Tier: TierBronze, Enabled: true, RegisteredAt: now.Add(-90 * 24 * time.Hour), ExpireAt: &future},
			want:     true,
		},
		{
			name:     "bronze explicit expiry passed",
			terminal: Terminal{Tier: TierBronze, Enabled: true, RegisteredAt: now, ExpireAt: &past},
			want:     false,
		},
		{
			name:     "silver never expires implicitly",
			terminal: Terminal{Tier: TierSilver, Enabled: true, RegisteredAt: now.Add(-365 * 24 * time.Hour)},
			want:     true,
		},
		{
			name:     "gold ignores expire_at",
			terminal: Terminal{Tier: TierGold, Enabled: true, RegisteredAt: now, ExpireAt: &past},
			want:     true,
		},
		{
			name:     "disabled terminal",
			terminal: Terminal{Tier: TierGold, Enabled: false, RegisteredAt: now},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.terminal.IsActiveAt(now))
		})
	}
}

func TestNewTerminalIsActive(t *testing.T) {
	term := NewTerminal(uuid.New(), "main", TierBronze)
	assert.True(t, term.IsActive())
	assert.True(t, term.Enabled)
}

func TestParseTerminalID(t *testing.T) {
	id := uuid.New()

	parsed, err := ParseTerminalID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	compact := id.String()[0:8] + id.String()[9:13] + id.String()[14:18] + id.String()[19:23] + id.String()[24:]
	parsed, err = ParseTerminalID(compact)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseTerminalID("{" + id.String() + "}")
	assert.Error(t, err)

	_, err = ParseTerminalID(TerminalTail(id))
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	id := uuid.MustParse("6f1c2a8e-3b5d-4c7e-9f10-2a3b4c5d6e7f")
	assert.Equal(t, "2a3b4c5d6e7f", TerminalTail(id))
	assert.True(t, IsTail("2a3b4c5d6e7f"))
	assert.False(t, IsTail("2a3b4c5d6e7"))
	assert.False(t, IsTail("2a3b4c5d6e7z"))
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("silver")
	require.NoError(t, err)
	assert.Equal(t, TierSilver, tier)

	tier, err = ParseTier("2")
	require.NoError(t, err)
	assert.Equal(t, TierGold, tier)

	_, err = ParseTier("platinum")
	assert.Error(t, err)
}
