package constants

// UpdateRule selects the Monte Carlo update rule for a run.
type UpdateRule string

const (
	// RuleMetropolis is single-spin-flip Metropolis dynamics.
	RuleMetropolis UpdateRule = "metropolis"

	// RuleWolff is Wolff single-cluster dynamics.
	RuleWolff UpdateRule = "wolff"
)

// Valid returns true if the rule is a recognized value.
func (r UpdateRule) Valid() bool {
	switch r {
	case RuleMetropolis, RuleWolff:
		return true
	}
	return false
}

// String returns the string representation of the rule.
func (r UpdateRule) String() string {
	return string(r)
}

// SiteOrder selects how Metropolis visits sites within a sweep.
type SiteOrder string

const (
	// OrderRandom picks N sites uniformly at random per sweep.
	OrderRandom SiteOrder = "random"

	// OrderSequential visits sites 0..N-1 in typewriter order.
	OrderSequential SiteOrder = "sequential"
)

// Valid returns true if the order is a recognized value.
func (o SiteOrder) Valid() bool {
	switch o {
	case OrderRandom, OrderSequential:
		return true
	}
	return false
}

// String returns the string representation of the order.
func (o SiteOrder) String() string {
	return string(o)
}

// InitPolicy selects the starting spin configuration of each point.
type InitPolicy string

const (
	// InitAuto starts aligned below the critical temperature and random above it.
	InitAuto InitPolicy = "auto"

	// InitAligned starts with every spin +1.
	InitAligned InitPolicy = "aligned"

	// InitRandom starts with independent 50/50 spins.
	InitRandom InitPolicy = "random"
)

// Valid returns true if the policy is a recognized value.
func (p InitPolicy) Valid() bool {
	switch p {
	case InitAuto, InitAligned, InitRandom:
		return true
	}
	return false
}

// String returns the string representation of the policy.
func (p InitPolicy) String() string {
	return string(p)
}
