package services

import "pointpay/internal/models"

type RefundReason string

const (
	RefundCanceled    RefundReason = "CANCELED"
	RefundClosedEarly RefundReason = "CLOSED_EARLY"
)

var bankNames = map[string]string{
	"004": "KB Kookmin Bank",
	"011": "NH Nonghyup Bank",
	"020": "Woori Bank",
	"088": "Shinhan Bank",
	"105": "Hana Bank",
	"090": "KakaoBank",
	"098": "Toss Bank",
}

// BankName resolves a bank code to a display name, falling back to the raw
// code for banks outside the supported set.
func BankName(code string) string {
	if name, ok := bankNames[code]; ok {
		return name
	}
	return code
}

type entryContext struct {
	surveyTitle  string
	bankCode     string
	refundReason RefundReason
	adminReason  string
}

func describeEntry(direction models.Direction, refType models.ReferenceType, c entryContext) string {
	switch direction {
	case models.DirectionCredit:
		switch refType {
		case models.ReferencePayment:
			return "point top-up"
		case models.ReferenceReward:
			if c.surveyTitle != "" {
				return "survey participation reward - " + c.surveyTitle
			}
			return "survey participation reward"
		case models.ReferenceRefund:
			suffix := ""
			switch c.refundReason {
			case RefundCanceled:
				suffix = " (cancelled)"
			case RefundClosedEarly:
				suffix = " (closed early)"
			}
			if c.surveyTitle != "" {
				return "survey refund - " + c.surveyTitle + suffix
			}
			return "point refund" + suffix
		case models.ReferenceAdmin:
			return adminDescription(c.adminReason)
		default:
			return "points credited"
		}
	default:
		switch refType {
		case models.ReferenceWithdrawal:
			return "withdrawal request to " + BankName(c.bankCode)
		case models.ReferenceSurveyCreate:
			if c.surveyTitle != "" {
				return "survey registration - " + c.surveyTitle
			}
			return "survey registration"
		case models.ReferenceAdmin:
			return adminDescription(c.adminReason)
		default:
			return "points spent"
		}
	}
}

func adminDescription(reason string) string {
	if reason == "" {
		return "admin point adjustment"
	}
	return "admin point adjustment (" + reason + ")"
}
