package escrow

import (
	"context"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/inaiurai/settlement/internal/models"
)

// TestFeeSplitConservation verifies fee + payment == price for every price.
// Property: SplitFee never creates or loses value and the fee stays within bounds.
func TestFeeSplitConservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("fee + payment == price", prop.ForAll(
		func(price int64) bool {
			fee, payment := models.SplitFee(price)
			want := new(big.Int).Mul(big.NewInt(price), big.NewInt(models.PlatformFeePercent))
			want.Quo(want, big.NewInt(100))
			return fee+payment == price &&
				fee >= 0 && payment > 0 &&
				want.IsInt64() && fee == want.Int64()
		},
		gen.OneGenOf(
			gen.Int64Range(1, 1<<50),
			gen.Int64Range(math.MaxInt64/2, math.MaxInt64),
			gen.Int64Range(1, math.MaxInt64),
		),
	))

	for _, price := range []int64{1, 49, 50, 99, 100, math.MaxInt64 / 2, math.MaxInt64/2 + 1, 5_000_000_000_000_000_000, math.MaxInt64} {
		fee, payment := models.SplitFee(price)
		if fee < 0 || fee+payment != price {
			t.Errorf("SplitFee(%d) = fee %d payment %d", price, fee, payment)
		}
	}

	properties.TestingRun(t)
}

var legalEdges = map[[2]models.JobState]bool{
	{models.JobCreated, models.JobAccepted}:   true,
	{models.JobAccepted, models.JobSubmitted}: true,
	{models.JobSubmitted, models.JobApproved}: true,
	{models.JobSubmitted, models.JobSlashed}:  true,
	{models.JobCreated, models.JobCancelled}:  true,
	{models.JobAccepted, models.JobCancelled}: true,
}

// TestStateLegality drives random call sequences through the real core.
// Property: every successful call takes exactly one legal edge, every failed
// call leaves the job untouched, and escrow custody always equals the sum of
// unreleased prices.
func TestStateLegality(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	properties.Property("only legal edges, custody conserved", prop.ForAll(
		func(ops []int) bool {
			f := newFixture(t)
			ctx := context.Background()
			price := models.Unit / 10

			for _, op := range ops {
				count := f.escrow.JobCount(ctx)
				id := uint64(1)
				if count > 0 {
					id = uint64(op/7)%count + 1
				}
				var before models.JobState
				if j, err := f.escrow.Get(ctx, id); err == nil {
					before = j.State
				}

				var err error
				switch op % 7 {
				case 0:
					_, err = f.escrow.CreateJob(ctx, master, worker, price, f.now.Add(time.Hour))
					if err == nil {
						continue
					}
				case 1:
					err = f.escrow.AcceptJob(ctx, worker, id)
				case 2:
					err = f.escrow.SubmitResult(ctx, worker, id, hash, "ref")
				case 3:
					err = f.escrow.ApproveAndRelease(ctx, master, id)
				case 4:
					err = f.escrow.RejectAndSlash(ctx, master, id, models.MinimumStake)
				case 5:
					err = f.escrow.CancelJob(ctx, master, id)
				case 6:
					f.now = f.now.Add(40 * time.Minute)
					continue
				}

				var after models.JobState
				if j, gerr := f.escrow.Get(ctx, id); gerr == nil {
					after = j.State
				}
				if err != nil && after != before {
					return false
				}
				if err == nil && !legalEdges[[2]models.JobState{before, after}] {
					return false
				}

				var sum int64
				for _, j := range f.escrow.List(ctx, ListFilter{}) {
					if !j.FundsReleased {
						sum += j.Price
					}
					if j.FundsReleased != j.State.IsTerminal() {
						return false
					}
				}
				if f.escrow.TotalLocked(ctx) != sum || f.funds.Balance(ctx, models.EscrowAddress) != sum {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(40, gen.IntRange(0, 7*8-1)),
	))

	properties.TestingRun(t)
}
