package app_test

import (
	"bytes"
	"context"
	"testing"

	"fitlog/internal/adapter/memory"
	"fitlog/internal/app"
	"fitlog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

func TestNewSeries(t *testing.T) {
	s := app.NewSeries([]domain.FitnessEntry{
		{Date: "2024-01-01", Steps: 1, Calories: 10, SleepHours: 7},
		{Date: "2024-01-02", Steps: 2, Calories: 20, SleepHours: 8.5},
	})
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, s.Dates)
	assert.Equal(t, []int{1, 2}, s.Steps)
	assert.Equal(t, []int{10, 20}, s.Calories)
	assert.Equal(t, []float64{7, 8.5}, s.Sleep)
}

func TestGetSeries_Range(t *testing.T) {
	ctx := context.Background()
	entries := app.NewEntryService(memory.New())
	for _, d := range []string{"2024-01-05", "2024-01-01", "2024-01-03"} {
		_, _ = entries.Create(ctx, 1, domain.EntryInput{Date: d})
	}

	s, err := app.NewChartsService(entries).GetSeries(ctx, 1, domain.DateRange{Start: "2024-01-02"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03", "2024-01-05"}, s.Dates)
}

func TestRenderPNG(t *testing.T) {
	for _, n := range []int{0, 1, 3, 40} {
		ctx := context.Background()
		entries := app.NewEntryService(memory.New())
		for i := range n {
			_, _ = entries.Create(ctx, 1, domain.EntryInput{
				Date:       "2024-02-" + twoDigits(i%28+1),
				Steps:      1000 * i,
				Calories:   100 * i,
				SleepHours: 6 + float64(i%3),
			})
		}

		var buf bytes.Buffer
		require.NoError(t, app.NewChartsService(entries).RenderPNG(ctx, 1, &buf), "n=%d", n)
		assert.True(t, bytes.HasPrefix(buf.Bytes(), pngSignature), "n=%d: output is not a PNG", n)
	}
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
