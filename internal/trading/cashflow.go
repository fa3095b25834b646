package trading

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Aidin1998/tradebook/pkg/models"
)

// defaultSchedule applies when a leg does not specify a calculation period
const defaultSchedule = "3M"

var monthsPerYear = decimal.NewFromInt(12)
var hundred = decimal.NewFromInt(100)

// scheduleMonths maps a calculation period schedule to its length in months
func scheduleMonths(schedule string) int {
	switch strings.ToUpper(strings.TrimSpace(schedule)) {
	case "1M":
		return 1
	case "3M":
		return 3
	case "6M":
		return 6
	case "1Y", "12M":
		return 12
	}
	return 0
}

// GenerateCashflows produces the payment schedule for one leg between the
// trade start and maturity dates. Payments fall at the end of each calculation
// period; a period whose end lands past maturity generates nothing. Fixed legs
// pay notional * rate/100 prorated to the period length; floating legs have no
// projectable amount, so their scheduled payments carry a zero value.
func GenerateCashflows(leg *models.TradeLeg, start, maturity time.Time) []models.Cashflow {
	schedule := leg.CalculationPeriodSchedule
	if strings.TrimSpace(schedule) == "" {
		schedule = defaultSchedule
	}
	months := scheduleMonths(schedule)
	if months == 0 || start.IsZero() || maturity.IsZero() || !start.Before(maturity) {
		return nil
	}

	amount := decimal.Zero
	if strings.EqualFold(leg.LegType, models.LegTypeFixed) && leg.Rate != nil {
		fraction := decimal.NewFromInt(int64(months)).Div(monthsPerYear)
		amount = leg.Notional.Mul(leg.Rate.Div(hundred)).Mul(fraction).Round(2)
	}

	var flows []models.Cashflow
	for next := start.AddDate(0, months, 0); !next.After(maturity); next = next.AddDate(0, months, 0) {
		flows = append(flows, models.Cashflow{
			PaymentDate: next,
			Amount:      amount,
		})
	}
	return flows
}
