// Package planner contains the pure scheduling and action-planning logic:
// next-fire computation for schedules and deterministic action plans for
// account runs.
package planner

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

// NextFire computes when a schedule should fire next. Manual schedules never
// fire; unknown frequencies fall back to a daily cadence. The random offset
// from randomConfig is applied to every non-manual result.
func NextFire(frequency models.ScheduleFrequency, spec, randomConfig map[string]any, now time.Time) *time.Time {
	freq := models.ScheduleFrequency(strings.ToLower(strings.TrimSpace(string(frequency))))
	if freq == models.FrequencyManual {
		return nil
	}

	nowUTC := now.UTC()

	switch freq {
	case models.FrequencyInterval:
		everyMinutes := intFromMap(spec, []string{"every_minutes", "interval_minutes"}, 60)
		if everyMinutes <= 0 {
			everyMinutes = 60
		}
		next := applyRandomOffset(nowUTC.Add(time.Duration(everyMinutes)*time.Minute), randomConfig)
		return &next

	case models.FrequencyDaily:
		hour, minute := parseTimeOfDay(stringFromMap(spec, "time_of_day", "09:00"))
		candidate := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), hour, minute, 0, 0, time.UTC)
		if !candidate.After(nowUTC) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		next := applyRandomOffset(candidate, randomConfig)
		return &next
	}

	next := applyRandomOffset(nowUTC.Add(24*time.Hour), randomConfig)
	return &next
}

// ShouldSkip rolls the schedule's skip_probability dice. Unparseable or
// non-positive values never skip; values at or above 1 always skip.
func ShouldSkip(randomConfig map[string]any) bool {
	prob, ok := floatFromMap(randomConfig, "skip_probability")
	if !ok || prob <= 0 {
		return false
	}
	if prob >= 1 {
		return true
	}
	return rand.Float64() < prob
}

func applyRandomOffset(next time.Time, randomConfig map[string]any) time.Time {
	maxOffset := intFromMap(randomConfig, []string{"offset_minutes_max", "random_offset_minutes_max"}, 0)
	if maxOffset <= 0 {
		return next
	}
	return next.Add(time.Duration(rand.Intn(maxOffset+1)) * time.Minute)
}

func parseTimeOfDay(value string) (int, int) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 9, 0
	}
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return 9, 0
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 9, 0
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 9, 0
	}
	return clampInt(hour, 0, 23), clampInt(minute, 0, 59)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// intFromMap reads the first present key that parses as an integer.
// JSON decoding yields float64 for numbers; strings are also accepted.
func intFromMap(m map[string]any, keys []string, def int) int {
	for _, key := range keys {
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return parsed
			}
		}
	}
	return def
}

func floatFromMap(m map[string]any, key string) (float64, bool) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

func stringFromMap(m map[string]any, key, def string) string {
	raw, ok := m[key]
	if !ok || raw == nil {
		return def
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return def
}
