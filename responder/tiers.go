package responder

// Tier is the qualitative label for an AI probability.
type Tier struct {
	Marker string
	Label  string
}

var (
	TierVeryLikelyAI   = Tier{"🔴", "Very likely AI-generated"}
	TierLikelyAI       = Tier{"🟠", "Likely AI-generated"}
	TierPossiblyAI     = Tier{"🟡", "Possibly AI-generated"}
	TierPossiblyReal   = Tier{"🟡", "Possibly real"}
	TierLikelyReal     = Tier{"🟢", "Likely real"}
	TierVeryLikelyReal = Tier{"🟢", "Very likely real"}
)

// TierFor maps a probability in [0,100] to one of six tiers, with band
// edges at 80, 60, 50, 40 and 20.
func TierFor(probability float64) Tier {
	switch {
	case probability >= 80:
		return TierVeryLikelyAI
	case probability >= 60:
		return TierLikelyAI
	case probability >= 50:
		return TierPossiblyAI
	case probability >= 40:
		return TierPossiblyReal
	case probability >= 20:
		return TierLikelyReal
	default:
		return TierVeryLikelyReal
	}
}

func (t Tier) String() string {
	return t.Marker + " " + t.Label
}
