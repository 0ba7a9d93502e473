package adapter

import "math"

// EstimateTokens approximates the token count of text when upstream supplies
// no authoritative usage metadata. CJK ideographs tokenize far denser than
// Latin script, so characters in the unified ideograph block cost 1/1.5 token
// each and everything else costs 1/4, summed and rounded up. The result must
// never override an authoritative count once one has been observed.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	var dense, other int
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			dense++
		} else {
			other++
		}
	}
	return int(math.Ceil(float64(dense)/1.5 + float64(other)/4))
}
