package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRebate(t *testing.T) {
	tests := []struct {
		name string
		tax  string
		days int
		want string
	}{
		{name: "thirty days on 500000", tax: "500000", days: 30, want: "2054.79"},
		{name: "two days on 500000", tax: "500000", days: 2, want: "136.99"},
		{name: "full year", tax: "500000", days: 365, want: "25000"},
		{name: "small tax base", tax: "73", days: 1, want: "0.01"},
		{name: "zero tax", tax: "0", days: 30, want: "0"},
		{name: "negative tax", tax: "-100", days: 30, want: "0"},
		{name: "zero days", tax: "500000", days: 0, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rebate(decimal.RequireFromString(tt.tax), tt.days)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestApprovedDays(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		resolution time.Time
		want       int
	}{
		{name: "same instant", resolution: t0, want: 0},
		{name: "before submission", resolution: t0.Add(-time.Hour), want: 0},
		{name: "one minute", resolution: t0.Add(time.Minute), want: 1},
		{name: "exactly two days", resolution: t0.Add(48 * time.Hour), want: 2},
		{name: "two days and a second", resolution: t0.Add(48*time.Hour + time.Second), want: 3},
		{name: "seven days", resolution: t0.AddDate(0, 0, 7), want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApprovedDays(t0, tt.resolution))
		})
	}
}
