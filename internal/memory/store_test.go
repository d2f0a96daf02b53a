package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEpisodeStoreRoundTrip(t *testing.T) {
	s, err := OpenEpisodeStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.RecordEpisode(ctx, "fix the login session bug", "2 focus files", "high"))
	require.NoError(t, s.RecordEpisode(ctx, "tune the ingress timeouts", "1 focus file", "low"))

	got, err := s.RecentEpisodes(ctx, "another login session issue", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "fix the login session bug", got[0].Request)
	require.Equal(t, "high", got[0].Outcome)
}

func TestEpisodeStoreNoOverlapReturnsNothing(t *testing.T) {
	s, err := OpenEpisodeStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.RecordEpisode(ctx, "fix the login session bug", "", ""))

	got, err := s.RecentEpisodes(ctx, "unrelated database migration", 5)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestGoldenExamplesEmptyStore(t *testing.T) {
	s, err := OpenEpisodeStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GoldenExamples(context.Background(), "anything", 3)
	require.NoError(t, err)
	require.Empty(t, got)
}
