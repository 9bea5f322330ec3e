package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PluxCo/testing-platform-old/internal/settings"
)

func TestSettingsDTORoundTrip(t *testing.T) {
	cfg := settings.Settings{
		TimePeriod: 90 * time.Second,
		FromTime:   settings.ClockTime{Hour: 9},
		ToTime:     settings.ClockTime{Hour: 18, Minute: 30},
		WeekDays:   []time.Weekday{time.Monday, time.Wednesday},
	}

	dto := toDTO(cfg)
	assert.Equal(t, 90.0, dto.TimePeriodSeconds)
	assert.Equal(t, "09:00", dto.FromTime)
	assert.Equal(t, "18:30", dto.ToTime)
	assert.Equal(t, []int{1, 3}, dto.WeekDays)

	back, err := fromDTO(dto)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestFromDTORejectsBadInput(t *testing.T) {
	base := toDTO(settings.Default())

	bad := base
	bad.FromTime = "25:99"
	_, err := fromDTO(bad)
	assert.Error(t, err)

	bad = base
	bad.TimePeriodSeconds = 0
	_, err = fromDTO(bad)
	assert.Error(t, err)

	bad = base
	bad.WeekDays = []int{7}
	_, err = fromDTO(bad)
	assert.Error(t, err)
}
