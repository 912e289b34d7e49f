package verify

import "math"

// Digital footprint platforms and their weights within each category.
var (
	socialWeights = map[string]float64{
		"whatsapp":  0.4,
		"instagram": 0.3,
		"facebook":  0.2,
		"twitter":   0.1,
	}
	ecommerceWeights = map[string]float64{
		"amazon":   0.6,
		"flipkart": 0.4,
	}
	paymentWeights = map[string]float64{
		"paytm": 1.0,
	}
)

// attachConfidenceScores derives weighted presence scores from a contact
// lookup result and injects them under result.confidence_scores. Only
// complete (HTTP 200) lookups get scores.
func attachConfidenceScores(httpStatus int, body map[string]any) {
	if httpStatus != 200 {
		return
	}
	result, ok := body["result"].(map[string]any)
	if !ok {
		return
	}

	social := weightedPresence(result, socialWeights)
	ecommerce := weightedPresence(result, ecommerceWeights)
	payment := weightedPresence(result, paymentWeights)
	total := (social + ecommerce + payment) / 3

	result["confidence_scores"] = map[string]any{
		"social_media_score": round2(social * 100),
		"ecommerce_score":    round2(ecommerce * 100),
		"payment_score":      round2(payment * 100),
		"confidence_score":   round2(total * 100),
	}
}

// weightedPresence sums the weights of platforms the contact is registered
// on. A platform counts only when its entry is a document with a truthy
// registered flag.
func weightedPresence(result map[string]any, weights map[string]float64) float64 {
	var score float64
	for platform, weight := range weights {
		entry, ok := result[platform].(map[string]any)
		if !ok {
			continue
		}
		if registered, _ := entry["registered"].(bool); registered {
			score += weight
		}
	}
	return score
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
