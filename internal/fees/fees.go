package fees

import "github.com/shopspring/decimal"

const (
	paymentFee    = 300
	withdrawalFee = 300
	basePrice     = 3000
)

// PaymentFee is the flat platform fee deducted from every confirmed charge.
func PaymentFee() int64 { return paymentFee }

// WithdrawalFee is the flat platform fee deducted from every payout.
func WithdrawalFee() int64 { return withdrawalFee }

var tierMultipliers = []decimal.Decimal{
	decimal.RequireFromString("1.0"),
	decimal.RequireFromString("1.3"),
	decimal.RequireFromString("1.6"),
	decimal.RequireFromString("1.8"),
	decimal.RequireFromString("2.0"),
}

func questionTier(questionCount int) decimal.Decimal {
	switch {
	case questionCount <= 10:
		return tierMultipliers[0]
	case questionCount <= 30:
		return tierMultipliers[1]
	case questionCount <= 60:
		return tierMultipliers[2]
	case questionCount <= 100:
		return tierMultipliers[3]
	default:
		return tierMultipliers[4]
	}
}

func responseTier(maxResponses int) decimal.Decimal {
	switch {
	case maxResponses <= 10:
		return tierMultipliers[0]
	case maxResponses <= 100:
		return tierMultipliers[1]
	case maxResponses <= 500:
		return tierMultipliers[2]
	case maxResponses <= 1000:
		return tierMultipliers[3]
	default:
		return tierMultipliers[4]
	}
}

// SurveyCreationCost computes the escrow charge for registering a survey: the
// full participant payout plus a tiered platform fee. The fee grows with
// survey size in steps, never continuously, so pricing stays predictable.
func SurveyCreationCost(questionCount, maxResponses int, rewardPerResponse int64) (total, platformFee int64) {
	payout := int64(maxResponses) * rewardPerResponse
	fee := questionTier(questionCount).
		Mul(responseTier(maxResponses)).
		Mul(decimal.NewFromInt(basePrice)).
		Round(0).
		IntPart()
	return payout + fee, fee
}
