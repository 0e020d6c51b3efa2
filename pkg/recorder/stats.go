package recorder

// EpisodeStats tallies episode outcomes for the epoch in progress.
// Reset only clears the outcome counters; the episode total and epoch
// index carry across the whole sweep.
type EpisodeStats struct {
	epochIndex      int
	successCount    int
	failureCount    int
	totalEpisodes   int
	currentTimestep float64
}

// NewEpisodeStats starts a tally at epoch 1
func NewEpisodeStats(timestep float64) *EpisodeStats {
	return &EpisodeStats{
		epochIndex:      1,
		currentTimestep: timestep,
	}
}

// RecordOutcome counts one finished episode
func (s *EpisodeStats) RecordOutcome(success bool) {
	s.totalEpisodes++
	if success {
		s.successCount++
	} else {
		s.failureCount++
	}
}

// Reset clears the success and failure counters
func (s *EpisodeStats) Reset() {
	s.successCount = 0
	s.failureCount = 0
}

// SetTimestep records the timestep the next episodes run at
func (s *EpisodeStats) SetTimestep(timestep float64) {
	s.currentTimestep = timestep
}

// AdvanceEpoch moves the tally on to the next epoch
func (s *EpisodeStats) AdvanceEpoch() {
	s.epochIndex++
}

// EpochIndex is the 1-based epoch currently being tallied
func (s *EpisodeStats) EpochIndex() int { return s.epochIndex }

func (s *EpisodeStats) SuccessCount() int { return s.successCount }

func (s *EpisodeStats) FailureCount() int { return s.failureCount }

func (s *EpisodeStats) TotalEpisodes() int { return s.totalEpisodes }

func (s *EpisodeStats) CurrentTimestep() float64 { return s.currentTimestep }

// Snapshot returns a copy of the counters suitable for serialization
func (s *EpisodeStats) Snapshot() Record {
	return Record{
		EpochNo:         s.epochIndex,
		Success:         s.successCount,
		Failure:         s.failureCount,
		TotalEpisodes:   s.totalEpisodes,
		CurrentTimestep: s.currentTimestep,
	}
}
