package strategy

// Label is a human-readable bucket for a score.
type Label string

const (
	StrongBuy  Label = "STRONG BUY"
	Buy        Label = "BUY"
	Neutral    Label = "NEUTRAL"
	Sell       Label = "SELL"
	StrongSell Label = "STRONG SELL"
)

// MinEvaluationPoints is the shortest history Evaluate will score.
const MinEvaluationPoints = 50

// LabelFor buckets a score: >= 80 strong buy, >= 60 buy, <= 20 strong sell,
// <= 40 sell, otherwise neutral.
func LabelFor(score float64) Label {
	switch {
	case score >= 80:
		return StrongBuy
	case score >= 60:
		return Buy
	case score <= 20:
		return StrongSell
	case score <= 40:
		return Sell
	default:
		return Neutral
	}
}

// Signal is one model's verdict on the most recent point of a series.
type Signal struct {
	Model       ModelID `json:"model"`
	DisplayName string  `json:"displayName"`
	Score       float64 `json:"score"`
	Label       Label   `json:"label"`
}

// Evaluate scores in with every registered model and returns one signal per
// model for the last index, in registration order. It returns nil when the
// inputs hold fewer than MinEvaluationPoints points.
func Evaluate(r *Registry, in Inputs) []Signal {
	n := in.Len()
	if n < MinEvaluationPoints {
		return nil
	}
	signals := make([]Signal, 0, len(r.order))
	for _, d := range r.Descriptors() {
		scores, err := r.Score(d.ID, in)
		if err != nil {
			continue
		}
		s := scores[n-1]
		signals = append(signals, Signal{
			Model:       d.ID,
			DisplayName: d.DisplayName,
			Score:       s,
			Label:       LabelFor(s),
		})
	}
	return signals
}
