package safety

import "time"

// Config carries the monitor's tunables. Tests shrink the intervals so a
// full poll/check-in cycle runs in milliseconds.
type Config struct {
	PollInterval      time.Duration
	SampleTimeout     time.Duration
	CheckInDeadline   time.Duration
	MissedSampleLimit int
	StopSpeedKmh      float64
	StopFixLimit      int
	HarshAccelMS2     float64
	SharpTurnDeg      float64
	SharpTurnMinKmh   float64
}

func DefaultConfig() Config {
	return Config{
		PollInterval:      15 * time.Second,
		SampleTimeout:     5 * time.Second,
		CheckInDeadline:   5 * time.Minute,
		MissedSampleLimit: 4,
		StopSpeedKmh:      2,
		StopFixLimit:      5,
		HarshAccelMS2:     3,
		SharpTurnDeg:      45,
		SharpTurnMinKmh:   20,
	}
}
