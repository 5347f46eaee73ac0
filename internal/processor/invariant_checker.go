package processor

import (
	"fmt"

	"ledger_engine/internal/domain"
)

// InvariantChecker inspects a client record after every applied operation.
// Fatal checks guard identities the engine must never break; advisory checks
// surface legitimate but noteworthy states as flags.
type InvariantChecker struct {
	checks []InvariantCheck
}

type InvariantCheck struct {
	Name        string
	Description string
	Fatal       bool
	Violated    func(*domain.Client) bool
}

func NewInvariantChecker() *InvariantChecker {
	return &InvariantChecker{
		checks: []InvariantCheck{
			{
				Name:        "balance_identity",
				Description: "total must equal available plus held",
				Fatal:       true,
				Violated: func(c *domain.Client) bool {
					return !c.Total.Equal(c.Available.Add(c.Held))
				},
			},
			{
				Name:        "negative_available",
				Description: "available driven negative by a dispute after the funds were withdrawn",
				Violated: func(c *domain.Client) bool {
					return c.Available.IsNegative()
				},
			},
		},
	}
}

// Inspect runs every check against the client. Advisory violations come back
// as flags; a fatal violation is returned as an error and indicates an
// engine bug.
func (ic *InvariantChecker) Inspect(client *domain.Client) ([]string, error) {
	var flags []string

	for _, check := range ic.checks {
		if !check.Violated(client) {
			continue
		}
		if check.Fatal {
			return flags, fmt.Errorf(
				"invariant %q violated for client %d: available=%s held=%s total=%s",
				check.Name, client.ID, client.Available, client.Held, client.Total)
		}
		flags = append(flags, check.Name)
	}

	return flags, nil
}
