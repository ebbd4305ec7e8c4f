package coordinator

import (
	"time"

	"siteaudit/internal/assessment"
)

// Profile is the static per-kind execution policy: how long one attempt may
// run, how many retries it gets, and how it ranks when capacity is contended.
type Profile struct {
	Timeout  time.Duration
	Retries  int
	Priority assessment.Priority
}

// defaultProfiles keys execution policy by kind. Performance checks are quick
// and worth retrying; insight generation is slow and expensive, so it gets a
// long window and a single retry.
var defaultProfiles = map[assessment.Kind]Profile{
	assessment.KindPerformance: {Timeout: 30 * time.Second, Retries: 2, Priority: assessment.PriorityHigh},
	assessment.KindTechnology:  {Timeout: 20 * time.Second, Retries: 2, Priority: assessment.PriorityNormal},
	assessment.KindInsight:     {Timeout: 90 * time.Second, Retries: 1, Priority: assessment.PriorityLow},
}

// RequestForKind builds a request using the coordinator's profile table.
// Explicitly constructed requests keep their own timeout and retry budget.
func (c *Coordinator) RequestForKind(kind assessment.Kind, target string) (assessment.Request, error) {
	profile, ok := c.profiles[kind]
	if !ok {
		profile = Profile{Timeout: 30 * time.Second, Priority: assessment.PriorityNormal}
	}
	req, err := assessment.NewRequest(kind, target, profile.Timeout, profile.Retries)
	if err != nil {
		return assessment.Request{}, err
	}
	req.Priority = profile.Priority
	return req, nil
}

// resolve fills a request's unset attempt timeout from the profile table.
// An explicit request timeout always wins.
func (c *Coordinator) resolve(req assessment.Request) assessment.Request {
	if req.Timeout > 0 {
		return req
	}
	if profile, ok := c.profiles[req.Kind]; ok {
		req.Timeout = profile.Timeout
	} else {
		req.Timeout = 30 * time.Second
	}
	return req
}
