package usage

// Price holds per-million-token prices for one model.
type Price struct {
	// Input is USD per million input tokens.
	Input float64
	// Output is USD per million output tokens.
	Output float64
}

// Pricing maps model identifiers to prices.
type Pricing map[string]Price

// Cost computes the cost of one call. Models absent from the table cost
// 0.0 so their records still participate in summation.
func (p Pricing) Cost(model string, tokensIn, tokensOut int) float64 {
	price, ok := p[model]
	if !ok {
		return 0.0
	}
	return float64(tokensIn)*price.Input/1e6 + float64(tokensOut)*price.Output/1e6
}
