package lsp

// Estimate is the result of a Monte-Carlo bid optimization: the best candidate bid
// and the statistics of its estimated expected utility.
type Estimate[B Bid] struct {
	Bid        B
	Utility    float64 // sample mean of the utility
	StdErr     float64 // standard error of the mean
	Samples    int     // number of sampled scenarios per candidate
	Candidates int     // number of distinct candidate bids evaluated
}
