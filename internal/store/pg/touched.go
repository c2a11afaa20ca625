package pg

import "github.com/inaiurai/settlement/internal/models"

// touchedSet lists the entities a committed unit may have changed, derived from
// its events. Each list is deduplicated and keeps first-seen order.
type touchedSet struct {
	identities  []models.Address
	reputations []models.Address
	balances    []models.Address
	jobs        []uint64
	scopes      []string
	settings    bool
}

func touched(events []models.Event) touchedSet {
	var (
		t     touchedSet
		seenI = map[models.Address]bool{}
		seenR = map[models.Address]bool{}
		seenB = map[models.Address]bool{}
		seenJ = map[uint64]bool{}
		seenS = map[string]bool{}
	)
	addr := func(list *[]models.Address, seen map[models.Address]bool, a models.Address) {
		if a.IsZero() || seen[a] {
			return
		}
		seen[a] = true
		*list = append(*list, a)
	}

	for _, ev := range events {
		if ev.JobID != 0 && !seenJ[ev.JobID] {
			seenJ[ev.JobID] = true
			t.jobs = append(t.jobs, ev.JobID)
		}
		switch ev.Kind {
		case models.EventIdentityRegistered, models.EventProfileUpdated, models.EventStakeDeposited,
			models.EventStakeWithdrawn, models.EventIdentityDeactivated:
			addr(&t.identities, seenI, ev.Subject)
		case models.EventStakeSlashed:
			addr(&t.identities, seenI, ev.Subject)
			t.settings = true
		case models.EventForfeitSwept, models.EventFeeRecipientChanged:
			t.settings = true
		case models.EventReputationUpdated, models.EventJobCompleted, models.EventJobFailed:
			addr(&t.reputations, seenR, ev.Subject)
		case models.EventJobApproved:
			// earnings of the worker
			addr(&t.reputations, seenR, ev.Counterparty)
		case models.EventFundsMinted:
			addr(&t.balances, seenB, ev.Subject)
		case models.EventFundsTransferred:
			addr(&t.balances, seenB, ev.Subject)
			addr(&t.balances, seenB, ev.Counterparty)
		case models.EventAuthorizationGranted, models.EventAuthorizationRevoked:
			if !seenS[ev.Detail] {
				seenS[ev.Detail] = true
				t.scopes = append(t.scopes, ev.Detail)
			}
		}
	}
	return t
}
