package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func span(t *testing.T, start, end string) Span {
	t.Helper()

	const layout = "2006-01-02 15:04"
	s, err := time.Parse(layout, start)
	assert.NoError(t, err)
	e, err := time.Parse(layout, end)
	assert.NoError(t, err)
	return Span{Start: s, End: e}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		spans []Span
		want  Days
	}{
		{
			name:  "no dates",
			spans: nil,
			want:  0,
		},
		{
			name:  "four hour session is half a day",
			spans: []Span{span(t, "2024-07-01 13:00", "2024-07-01 17:00")},
			want:  Half,
		},
		{
			name:  "eight hours within one day is a full day",
			spans: []Span{span(t, "2024-07-01 09:00", "2024-07-01 17:00")},
			want:  Full,
		},
		{
			name:  "saturday morning to sunday afternoon is multi-day",
			spans: []Span{span(t, "2024-07-06 08:00", "2024-07-07 16:00")},
			want:  Many,
		},
		{
			name: "two sessions on one day classify by overall span",
			spans: []Span{
				span(t, "2024-07-01 10:00", "2024-07-01 12:00"),
				span(t, "2024-07-01 14:00", "2024-07-01 17:00"),
			},
			want: Full,
		},
		{
			name: "sessions on two calendar days are multi-day",
			spans: []Span{
				span(t, "2024-07-01 10:00", "2024-07-01 12:00"),
				span(t, "2024-07-02 10:00", "2024-07-02 12:00"),
			},
			want: Many,
		},
		{
			name:  "evening running past midnight is still a full day",
			spans: []Span{span(t, "2024-07-01 18:00", "2024-07-02 02:00")},
			want:  Full,
		},
		{
			name:  "overnight ending at breakfast time is multi-day",
			spans: []Span{span(t, "2024-07-01 18:00", "2024-07-02 10:00")},
			want:  Many,
		},
		{
			name:  "exactly six hours is still half a day",
			spans: []Span{span(t, "2024-07-01 09:00", "2024-07-01 15:00")},
			want:  Half,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.spans))
		})
	}
}

func TestAggregate(t *testing.T) {
	combined := Aggregate(Half, Full, Half)
	assert.True(t, combined.Has(Half))
	assert.True(t, combined.Has(Full))
	assert.False(t, combined.Has(Many))

	assert.Equal(t, Days(0), Aggregate())
}
