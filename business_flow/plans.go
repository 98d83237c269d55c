package businessflow

import (
	"time"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/models"
	"github.com/anchorchat/anchor/utils"
)

// Pricing is the configured price list. Amounts are whole shillings.
type Pricing struct {
	ActivationFeeKES uint64
	PremiumPriceKES  uint64
	PremiumDuration  time.Duration
}

// DefaultPricing returns KES 50 activation and KES 300 per 30-day premium window
func DefaultPricing() Pricing {
	return Pricing{
		ActivationFeeKES: utils.ActivationFeeKES,
		PremiumPriceKES:  utils.PremiumPriceKES,
		PremiumDuration:  utils.PremiumWindow,
	}
}

// PriceFor returns the amount a purpose costs
func (p Pricing) PriceFor(purpose models.PaymentPurpose) uint64 {
	if purpose == models.PaymentPurposePremium {
		return p.PremiumPriceKES
	}
	return p.ActivationFeeKES
}

// SignupPurpose is what a freshly created account must pay for first. A premium
// signup pays the premium price once, which both activates and opens the window.
func SignupPurpose(plan models.AccountPlan) models.PaymentPurpose {
	if plan == models.AccountPlanPremium {
		return models.PaymentPurposePremium
	}
	return models.PaymentPurposeActivation
}

func (p Pricing) window() time.Duration {
	if p.PremiumDuration <= 0 {
		return utils.PremiumWindow
	}
	return p.PremiumDuration
}

func (p Pricing) toDTO() *dto.PlansResponse {
	return &dto.PlansResponse{
		Plans: []dto.PlanDTO{
			{
				Purpose:     string(models.PaymentPurposeActivation),
				Name:        "Activation",
				Amount:      p.ActivationFeeKES,
				Currency:    utils.KenyanShillingCurrency,
				Description: "One-off fee to activate an anonymous account",
			},
			{
				Purpose:      string(models.PaymentPurposePremium),
				Name:         "Premium",
				Amount:       p.PremiumPriceKES,
				Currency:     utils.KenyanShillingCurrency,
				DurationDays: int(p.window() / (24 * time.Hour)),
				Description:  "Premium access; also activates a pending account",
			},
		},
	}
}
