package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanHallsBounds(t *testing.T) {
	g := &Generator{rnd: rand.New(rand.NewSource(1))}

	halls := g.PlanHalls(50)
	require.Len(t, halls, 50)
	assert.Equal(t, "Hall 1", halls[0].Name)
	for _, h := range halls {
		assert.GreaterOrEqual(t, h.Rows, 8)
		assert.LessOrEqual(t, h.Rows, 20)
		assert.GreaterOrEqual(t, h.SeatsPerRow, 10)
		assert.LessOrEqual(t, h.SeatsPerRow, 24)
	}
}

func TestPlanMoviesWindows(t *testing.T) {
	g := &Generator{rnd: rand.New(rand.NewSource(1))}
	now := time.Date(2030, 3, 15, 17, 30, 0, 0, time.UTC)

	movies := g.PlanMovies(10, now)
	require.Len(t, movies, 10)

	titles := map[string]bool{}
	for _, m := range movies {
		assert.False(t, titles[m.Title], "duplicate title %q", m.Title)
		titles[m.Title] = true

		assert.GreaterOrEqual(t, m.Runtime, 80)
		assert.LessOrEqual(t, m.Runtime, 180)
		assert.False(t, m.ReleaseStart.After(now))
		assert.True(t, m.ReleaseEnd.After(now), "release window must still be open")
		assert.Zero(t, m.ReleaseStart.Hour())
	}
}
