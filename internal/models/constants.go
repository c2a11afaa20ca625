package models

// Amounts are minor units. No floats anywhere in the money path.
const (
	Unit int64 = 1_000_000

	// MinimumStake is the collateral an active identity must keep locked.
	MinimumStake = Unit / 100

	PlatformFeePercent    int64 = 2
	MaxPlatformFeePercent int64 = 10

	ReputationReward  int64 = 10
	ReputationPenalty int64 = 20

	// SlashWeight is the score discount applied per recorded slash in the trust score.
	SlashWeight int64 = 50
)

// Fixed identities of the core components and the default fee recipient.
var (
	StakeLedgerAddress      = MustParseAddress("0x0000000000000000000000000000000000000001")
	ReputationLedgerAddress = MustParseAddress("0x0000000000000000000000000000000000000002")
	EscrowAddress           = MustParseAddress("0x0000000000000000000000000000000000000003")
	PlatformAddress         = MustParseAddress("0x0000000000000000000000000000000000000004")
)

// SplitFee returns the platform fee and the worker payment for a job price.
// fee + payment == price for every non-negative price. The fee is
// floor(price*PlatformFeePercent/100) computed without the intermediate product.
func SplitFee(price int64) (fee, payment int64) {
	fee = price/100*PlatformFeePercent + price%100*PlatformFeePercent/100
	return fee, price - fee
}
