package models

import (
	"testing"
	"time"
)

func TestAdvanceStreak(t *testing.T) {
	today := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	threeDaysAgo := today.AddDate(0, 0, -3)
	earlierToday := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		current     int
		longest     int
		last        *time.Time
		wantCurrent int
		wantLongest int
	}{
		{
			name:        "first ever completion",
			current:     0,
			longest:     0,
			last:        nil,
			wantCurrent: 1,
			wantLongest: 1,
		},
		{
			name:        "consecutive day extends",
			current:     3,
			longest:     5,
			last:        &yesterday,
			wantCurrent: 4,
			wantLongest: 5,
		},
		{
			name:        "new longest streak",
			current:     5,
			longest:     5,
			last:        &yesterday,
			wantCurrent: 6,
			wantLongest: 6,
		},
		{
			name:        "same day leaves streak unchanged",
			current:     4,
			longest:     7,
			last:        &earlierToday,
			wantCurrent: 4,
			wantLongest: 7,
		},
		{
			name:        "gap resets to one",
			current:     9,
			longest:     9,
			last:        &threeDaysAgo,
			wantCurrent: 1,
			wantLongest: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCurrent, gotLongest := AdvanceStreak(tt.current, tt.longest, tt.last, today)
			if gotCurrent != tt.wantCurrent {
				t.Errorf("current = %d, want %d", gotCurrent, tt.wantCurrent)
			}
			if gotLongest != tt.wantLongest {
				t.Errorf("longest = %d, want %d", gotLongest, tt.wantLongest)
			}
		})
	}
}

func TestAdvanceStreakCrossesMidnight(t *testing.T) {
	// 23:50 yesterday followed by 00:10 today is consecutive
	lastNight := time.Date(2025, 6, 9, 23, 50, 0, 0, time.UTC)
	justAfterMidnight := time.Date(2025, 6, 10, 0, 10, 0, 0, time.UTC)

	current, _ := AdvanceStreak(2, 2, &lastNight, justAfterMidnight)
	if current != 3 {
		t.Errorf("expected streak 3 across midnight, got %d", current)
	}
}

func TestAdvanceStreakAcrossDSTChange(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("time zone database unavailable: %v", err)
	}

	// 2025-03-09 springs forward, so it is only 23 real hours long:
	// its midnight and the next one are less than a day apart, yet a
	// completion on each is still two consecutive calendar days
	shortDay := time.Date(2025, 3, 9, 21, 0, 0, 0, loc)
	nextDay := time.Date(2025, 3, 10, 21, 0, 0, 0, loc)
	midnightGap := time.Date(2025, 3, 10, 0, 0, 0, 0, loc).Sub(time.Date(2025, 3, 9, 0, 0, 0, 0, loc))
	if midnightGap != 23*time.Hour {
		t.Fatalf("expected a 23h day, got %v", midnightGap)
	}

	current, _ := AdvanceStreak(4, 4, &shortDay, nextDay)
	if current != 5 {
		t.Errorf("expected streak 5 across DST change, got %d", current)
	}
}

func TestStreakBonus(t *testing.T) {
	tests := []struct {
		streak int
		want   int
	}{
		{streak: 0, want: 0},
		{streak: 1, want: 5},
		{streak: 3, want: 15},
		{streak: 10, want: 50},
		{streak: 25, want: 50},
		{streak: -1, want: 0},
	}

	for _, tt := range tests {
		if got := StreakBonus(tt.streak); got != tt.want {
			t.Errorf("StreakBonus(%d) = %d, want %d", tt.streak, got, tt.want)
		}
	}
}
