// Package bandit implements Thompson Sampling over application
// categories and methods. Each arm keeps a Beta(alpha, beta) posterior
// over expected reward; recommendation samples the posteriors, ranking
// learns from their means.
package bandit

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/applyrag/applyrag/internal/record"
)

// Outcome reward values. Interview and offer dominate; a mere response
// is worth half; silence is nearly worthless but still above a hard block.
var outcomeRewards = map[string]float64{
	"blocked":     0.0,
	"no_response": 0.05,
	"rejected":    0.2,
	"response":    0.5,
	"interview":   0.8,
	"offer":       1.0,
}

// Outcomes lists the valid outcome labels in reward order.
func Outcomes() []string {
	return []string{"blocked", "no_response", "rejected", "response", "interview", "offer"}
}

// RewardFor maps an outcome label to its reward. Unknown labels are
// rejected so a typo never silently trains the model.
func RewardFor(outcome string) (float64, error) {
	r, ok := outcomeRewards[strings.ToLower(strings.TrimSpace(outcome))]
	if !ok {
		return 0, fmt.Errorf("unknown outcome %q (valid: %s)", outcome, strings.Join(Outcomes(), ", "))
	}
	return r, nil
}

// Arm is one Beta-Bernoulli arm of the bandit.
type Arm struct {
	Name        string  `json:"name"`
	Alpha       float64 `json:"alpha"`
	Beta        float64 `json:"beta"`
	Pulls       int     `json:"pulls"`
	TotalReward float64 `json:"total_reward"`
}

// NewArm creates an arm with the uniform Beta(1,1) prior.
func NewArm(name string) *Arm {
	return &Arm{Name: name, Alpha: 1, Beta: 1}
}

// Update folds one reward observation into the posterior. Rewards are
// clamped to [0,1]; fractional rewards split mass between alpha and beta.
func (a *Arm) Update(reward float64) {
	reward = math.Max(0, math.Min(1, reward))
	a.Alpha += reward
	a.Beta += 1 - reward
	a.Pulls++
	a.TotalReward += reward
}

// MeanReward returns the posterior mean alpha/(alpha+beta).
func (a *Arm) MeanReward() float64 {
	return a.Alpha / (a.Alpha + a.Beta)
}

// Sample draws from the arm's Beta posterior.
func (a *Arm) Sample(rng *rand.Rand) float64 {
	x := gammaSample(rng, a.Alpha)
	y := gammaSample(rng, a.Beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// gammaSample draws Gamma(shape, 1) via Marsaglia-Tsang. Posterior
// shapes are always >= 1 here (Beta(1,1) prior, non-negative updates),
// so the boost for shape < 1 is a guard, not a hot path.
func gammaSample(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return gammaSample(rng, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Model is the full arm map, keyed by arm name ("cat:<tag>" or
// "method:<ats>").
type Model struct {
	Arms map[string]*Arm `json:"arms"`

	rng *rand.Rand
}

// NewModel creates an empty model with the given random source. A nil
// rng gets a default source; tests inject a seeded one.
func NewModel(rng *rand.Rand) *Model {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Model{Arms: make(map[string]*Arm), rng: rng}
}

func (m *Model) arm(name string) *Arm {
	a, ok := m.Arms[name]
	if !ok {
		a = NewArm(name)
		m.Arms[name] = a
	}
	return a
}

// ArmsFor returns the arm names a record's tags and method map to.
func ArmsFor(tags []string, method string) []string {
	var names []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			names = append(names, "cat:"+t)
		}
	}
	if method = strings.ToLower(strings.TrimSpace(method)); method != "" {
		names = append(names, "method:"+method)
	}
	return names
}

// RecordOutcome updates every arm a record maps to with the outcome's
// reward.
func (m *Model) RecordOutcome(tags []string, method, outcome string) error {
	reward, err := RewardFor(outcome)
	if err != nil {
		return err
	}
	for _, name := range ArmsFor(tags, method) {
		m.arm(name).Update(reward)
	}
	return nil
}

// PriorFor returns the ranking prior for a record: the average posterior
// mean over its arms, or 0.5 when the model has seen none of them.
func (m *Model) PriorFor(tags []string, method string) float64 {
	var sum float64
	var n int
	for _, name := range ArmsFor(tags, method) {
		if a, ok := m.Arms[name]; ok {
			sum += a.MeanReward()
			n++
		}
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

// ArmStat is one arm's posterior summary for reporting.
type ArmStat struct {
	Name        string  `json:"name"`
	Pulls       int     `json:"pulls"`
	MeanReward  float64 `json:"mean_reward"`
	TotalReward float64 `json:"total_reward"`
	Sampled     float64 `json:"sampled"`
}

// Recommend samples every arm's posterior and returns the top k by
// sampled value. Exploration comes from the sampling noise: wide
// posteriors on rarely-pulled arms sometimes win.
func (m *Model) Recommend(k int) []ArmStat {
	stats := m.snapshot(true)
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Sampled != stats[j].Sampled {
			return stats[i].Sampled > stats[j].Sampled
		}
		return stats[i].Name < stats[j].Name
	})
	if k > 0 && k < len(stats) {
		stats = stats[:k]
	}
	return stats
}

// Stats returns all arms sorted by posterior mean, best first.
func (m *Model) Stats() []ArmStat {
	stats := m.snapshot(false)
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].MeanReward != stats[j].MeanReward {
			return stats[i].MeanReward > stats[j].MeanReward
		}
		return stats[i].Name < stats[j].Name
	})
	return stats
}

func (m *Model) snapshot(sample bool) []ArmStat {
	stats := make([]ArmStat, 0, len(m.Arms))
	for _, a := range m.Arms {
		s := ArmStat{
			Name:        a.Name,
			Pulls:       a.Pulls,
			MeanReward:  a.MeanReward(),
			TotalReward: a.TotalReward,
		}
		if sample {
			s.Sampled = a.Sample(m.rng)
		}
		stats = append(stats, s)
	}
	return stats
}

// bootstrapOutcomes maps a record status to the outcome used when
// seeding a fresh model from the tracker. Draft and Closed rows carry
// no signal and are skipped.
var bootstrapOutcomes = map[string]string{
	record.StatusApplied:  "no_response",
	record.StatusBlocked:  "blocked",
	record.StatusRejected: "rejected",
	record.StatusOffer:    "offer",
}

// BootstrapFromRecords seeds an empty model from tracker statuses so
// the first ranking session starts from observed history instead of
// uniform priors. Returns the number of records that contributed.
func (m *Model) BootstrapFromRecords(records []*record.Record) int {
	n := 0
	for _, r := range records {
		outcome, ok := bootstrapOutcomes[r.Status]
		if !ok {
			continue
		}
		if err := m.RecordOutcome(r.Tags, r.Method, outcome); err == nil {
			n++
		}
	}
	return n
}
