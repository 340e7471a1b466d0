package rewards

import "github.com/prometheus/client_golang/prometheus"

var (
	tierCorrections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gasly_rewards_tier_corrections_total",
			Help: "Cached tiers rewritten after reclassification, by new tier",
		},
		[]string{"tier"},
	)

	integrityFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gasly_rewards_integrity_failures_total",
			Help: "Rewards records observed with redeemed points above total points",
		},
	)

	pointsAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gasly_rewards_points_awarded_total",
			Help: "Points credited for delivered orders",
		},
	)

	pointsRedeemed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gasly_rewards_points_redeemed_total",
			Help: "Points spent on redemptions",
		},
	)
)

func init() {
	prometheus.MustRegister(tierCorrections, integrityFailures, pointsAwarded, pointsRedeemed)
}
