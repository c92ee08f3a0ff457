package hazard

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kass/go-saferoute/pkg/models"
)

// LightingMode selects how lighting quality enters the fused score
type LightingMode string

const (
	// LightingPenalty adds LightingWeight × darkness to the blended score
	LightingPenalty LightingMode = "penalty"
	// LightingMultiplier scales the blended score by 1 + LightingWeight × darkness
	LightingMultiplier LightingMode = "multiplier"
	// LightingFeature treats darkness as a third weighted input of the blend
	LightingFeature LightingMode = "feature"
)

// ParseLightingMode resolves a configured mode name
func ParseLightingMode(s string) (LightingMode, error) {
	switch m := LightingMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return LightingPenalty, nil
	case LightingPenalty, LightingMultiplier, LightingFeature:
		return m, nil
	default:
		return "", fmt.Errorf("unknown lighting mode %q", s)
	}
}

// ModelOutput is what the external classifier reports for one point
type ModelOutput struct {
	// ClusterRank orders clusters by mean incident count, 0 = safest
	ClusterRank int `json:"cluster_rank"`
	Clusters    int `json:"clusters"`
	// Probability of the high-risk class, in [0,1]
	Probability float64 `json:"probability"`
	// Lighting quality, 0 = dark, 1 = well lit
	Lighting float64 `json:"lighting"`
}

// Fusion blends cluster and probability scores and applies lighting
type Fusion struct {
	ClusterWeight     float64      `yaml:"cluster_weight"`
	ProbabilityWeight float64      `yaml:"probability_weight"`
	LightingWeight    float64      `yaml:"lighting_weight"`
	LightingMode      LightingMode `yaml:"lighting_mode"`
}

// DefaultFusion is a 60/40 cluster/probability blend with an additive 0.2 darkness penalty
func DefaultFusion() Fusion {
	return Fusion{
		ClusterWeight:     0.6,
		ProbabilityWeight: 0.4,
		LightingWeight:    0.2,
		LightingMode:      LightingPenalty,
	}
}

// Validate rejects negative weights and unknown modes
func (f Fusion) Validate() error {
	weights := []struct {
		name string
		w    float64
	}{
		{"cluster_weight", f.ClusterWeight},
		{"probability_weight", f.ProbabilityWeight},
		{"lighting_weight", f.LightingWeight},
	}
	for _, c := range weights {
		if math.IsNaN(c.w) || math.IsInf(c.w, 0) || c.w < 0 {
			return models.Invalid("", "fusion "+c.name, "must be a non-negative real, got %v", c.w)
		}
	}
	if f.ClusterWeight+f.ProbabilityWeight == 0 {
		return models.Invalid("", "fusion", "cluster and probability weights cannot both be zero")
	}
	if _, err := ParseLightingMode(string(f.LightingMode)); err != nil {
		return models.Invalid("", "fusion lighting_mode", "%v", err)
	}
	return nil
}

// Combine fuses one model output into a hazard in [0,1]
func (f Fusion) Combine(out ModelOutput) (float64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	if out.Clusters < 1 || out.ClusterRank < 0 || out.ClusterRank >= out.Clusters {
		return 0, models.Invalid("", "cluster_rank", "rank %d outside %d clusters", out.ClusterRank, out.Clusters)
	}
	if !Unit.Contains(out.Probability) {
		return 0, models.Invalid("", "probability", "%v outside %s", out.Probability, Unit)
	}
	if !Unit.Contains(out.Lighting) {
		return 0, models.Invalid("", "lighting", "%v outside %s", out.Lighting, Unit)
	}

	// A single cluster carries no ranking information
	cluster := 0.0
	if out.Clusters > 1 {
		cluster = float64(out.ClusterRank) / float64(out.Clusters-1)
	}
	darkness := 1 - out.Lighting
	blend := f.ClusterWeight*cluster + f.ProbabilityWeight*out.Probability

	var score float64
	mode, err := ParseLightingMode(string(f.LightingMode))
	if err != nil {
		return 0, models.Invalid("", "fusion lighting_mode", "%v", err)
	}
	switch mode {
	case LightingMultiplier:
		score = blend * (1 + f.LightingWeight*darkness)
	case LightingFeature:
		score = (blend + f.LightingWeight*darkness) /
			(f.ClusterWeight + f.ProbabilityWeight + f.LightingWeight)
	default:
		score = blend + f.LightingWeight*darkness
	}
	return math.Max(0, math.Min(1, score)), nil
}

// Scores fuses the outputs of every point into a Unit-scale mapping for Apply
func (f Fusion) Scores(outputs map[string]ModelOutput) (map[string]float64, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	// Sorted ids make the reported error deterministic
	ids := make([]string, 0, len(outputs))
	for id := range outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	scores := make(map[string]float64, len(outputs))
	for _, id := range ids {
		s, err := f.Combine(outputs[id])
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", id, err)
		}
		scores[id] = s
	}
	return scores, nil
}
