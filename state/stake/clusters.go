package stake

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/lsp-research/lspmarket/model/lsp"
)

// ClusterSize describes Count clusters that each control Size validators.
type ClusterSize struct {
	Size             uint64  `mapstructure:"size" validate:"gt=0"`
	Count            int     `mapstructure:"count" validate:"gt=0"`
	ReputationFactor float64 `mapstructure:"reputation_factor" validate:"gte=0"`
}

// FromClusterSizes builds a distribution from groups of equally sized clusters.
// Clusters are named cluster-000, cluster-001, ... in ascending size order; groups of
// the same size keep their given order.
func FromClusterSizes(groups []ClusterSize) (*Distribution, error) {
	sorted := make([]ClusterSize, len(groups))
	copy(sorted, groups)
	slices.SortStableFunc(sorted, func(a, b ClusterSize) int {
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		default:
			return 0
		}
	})

	var participants lsp.ParticipantList
	for _, g := range sorted {
		if g.Count <= 0 {
			return nil, fmt.Errorf("cluster group of size %d has non-positive count %d", g.Size, g.Count)
		}
		for i := 0; i < g.Count; i++ {
			participants = append(participants, lsp.Participant{
				ID:               lsp.Identifier(fmt.Sprintf("cluster-%03d", len(participants))),
				Stake:            g.Size,
				ReputationFactor: g.ReputationFactor,
			})
		}
	}
	return NewDistribution(participants)
}
