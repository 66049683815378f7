package hipaa

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	rows := []Entry{
		{ID: "1", UserID: "p1", Action: ActionLogin, Resource: ResourceAuth, Timestamp: base},
		{ID: "2", UserID: "p1", Action: ActionViewProfile, Resource: ResourceProfile, Timestamp: base.Add(time.Hour)},
		{ID: "3", UserID: "dr", Action: ActionViewCompliance, Resource: ResourceCompliance, Timestamp: base.Add(2 * time.Hour)},
		{ID: "4", UserID: "p1", Action: ActionLogGoal, Resource: ResourceGoal, Timestamp: base.Add(3 * time.Hour)},
	}
	for i := range rows {
		require.NoError(t, s.Append(context.Background(), &rows[i]))
	}
	return s
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := seedMemory(t)

	got, err := s.List(context.Background(), Filter{UserID: "p1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "4", got[0].ID)
	assert.Equal(t, "1", got[2].ID)
}

func TestMemoryStore_ListFilters(t *testing.T) {
	s := seedMemory(t)
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"action", Filter{Action: ActionViewCompliance}, []string{"3"}},
		{"resource", Filter{Resource: ResourceAuth}, []string{"1"}},
		{"since", Filter{Since: base.Add(90 * time.Minute)}, []string{"4", "3"}},
		{"until", Filter{Until: base.Add(30 * time.Minute)}, []string{"1"}},
		{"limit", Filter{Limit: 2}, []string{"4", "3"}},
		{"no match", Filter{UserID: "nobody"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(context.Background(), tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFilter_Defaults(t *testing.T) {
	f := Filter{}
	f.applyDefaults()
	assert.Equal(t, 100, f.Limit)

	f = Filter{Limit: 5000}
	f.applyDefaults()
	assert.Equal(t, 1000, f.Limit)
}
