package match

// Level thresholds. A level never decreases because the interaction count
// only grows and LevelFor is non-decreasing.
const (
	LevelInitial     uint8 = 1
	LevelAcquainted  uint8 = 2
	LevelEstablished uint8 = 3

	acquaintedAt  = 1
	establishedAt = 3
)

// LevelFor maps an interaction count to a level.
func LevelFor(interactions uint64) uint8 {
	switch {
	case interactions >= establishedAt:
		return LevelEstablished
	case interactions >= acquaintedAt:
		return LevelAcquainted
	default:
		return LevelInitial
	}
}
