package registry

import (
	"context"

	"github.com/ashita-ai/beacon/internal/model"
)

// Builtin is the registry used when no file is configured or the configured
// provider fails. Every call returns fresh copies.
type Builtin struct{}

var (
	_ Provider               = Builtin{}
	_ DefaultProfileProvider = Builtin{}
)

const (
	procProfitability = "Finance: Profitability Analysis"
	procRevenue       = "Finance: Revenue Growth Analysis"
	procExpense       = "Finance: Expense Management"
	procCashFlow      = "Finance: Cash Flow Management"
	procBudget        = "Finance: Budget vs. Actuals"
	procStrategy      = "Strategy: Strategic Planning"
	procEfficiency    = "Operations: Operational Efficiency"
	procSupplyChain   = "Operations: Supply Chain Management"
)

func (Builtin) Document(context.Context) (Document, error) {
	return builtinDocument(), nil
}

func (Builtin) PrincipalProfiles(context.Context) ([]model.PrincipalProfile, error) {
	return builtinDocument().Principals, nil
}

func (Builtin) KPIDefinitions(context.Context) ([]model.KPIDefinition, error) {
	return builtinDocument().KPIs, nil
}

func (Builtin) BusinessProcesses(context.Context) ([]string, error) {
	return builtinDocument().BusinessProcesses, nil
}

func (Builtin) DefaultProfile(context.Context) (*model.PrincipalProfile, error) {
	return builtinDocument().DefaultProfile, nil
}

func builtinDocument() Document {
	cfo := model.PrincipalProfile{
		ID:                  "cfo_001",
		DisplayName:         "Chief Financial Officer",
		Role:                "CFO",
		Title:               "Chief Financial Officer",
		Department:          "Finance",
		BusinessProcesses:   []string{procProfitability, procRevenue, procExpense, procCashFlow, procBudget},
		DefaultFilters:      map[string]any{"currency": "USD"},
		DecisionStyle:       "analytical",
		CommunicationStyle:  "concise",
		PreferredTimeframes: []model.Timeframe{model.TimeframeCurrentQuarter, model.TimeframeYearToDate},
		Description:         "Owns financial performance, cost control and cash.",
	}
	ceo := model.PrincipalProfile{
		ID:                  "ceo_001",
		DisplayName:         "Chief Executive Officer",
		Role:                "CEO",
		Title:               "Chief Executive Officer",
		Department:          "Executive",
		BusinessProcesses:   []string{procStrategy, procRevenue, procProfitability},
		DecisionStyle:       "visionary",
		CommunicationStyle:  "summary",
		PreferredTimeframes: []model.Timeframe{model.TimeframeCurrentQuarter, model.TimeframeTrailing12},
		Description:         "Owns overall company performance and strategy.",
	}
	coo := model.PrincipalProfile{
		ID:                  "coo_001",
		DisplayName:         "Chief Operating Officer",
		Role:                "COO",
		Title:               "Chief Operating Officer",
		Department:          "Operations",
		BusinessProcesses:   []string{procEfficiency, procSupplyChain, procExpense},
		DecisionStyle:       "pragmatic",
		CommunicationStyle:  "detailed",
		PreferredTimeframes: []model.Timeframe{model.TimeframeCurrentMonth, model.TimeframeCurrentQuarter},
		Description:         "Owns day-to-day operations and delivery.",
	}
	def := cfo
	def.ID = "default_cfo"
	def.DisplayName = "Default Executive"
	def.Title = ""

	higherIsBetter := model.Threshold{Green: 0, Yellow: -0.05, Red: -0.10}
	lowerIsBetter := model.Threshold{Green: 0, Yellow: 0.05, Red: 0.10, InverseLogic: true}

	return Document{
		Principals: []model.PrincipalProfile{cfo, ceo, coo},
		KPIs: []model.KPIDefinition{
			{
				Name:                "Revenue",
				Description:         "Total recognized revenue",
				Unit:                "USD",
				DataProductID:       "fi_star_schema",
				Thresholds:          map[model.ComparisonType]model.Threshold{model.DefaultThresholdKey: higherIsBetter},
				BusinessProcesses:   []string{procRevenue, procProfitability},
				Dimensions:          []string{"region", "product_line"},
				PositiveTrendIsGood: true,
				DiagnosticQuestions: []string{"Which regions or product lines drove the change?", "Did pricing or volume move?"},
				SuggestedActions:    []string{"Review the sales pipeline by region", "Check for delayed revenue recognition"},
			},
			{
				Name:                "Gross Margin",
				Description:         "Revenue less cost of goods sold, as a share of revenue",
				Unit:                "%",
				DataProductID:       "fi_star_schema",
				Thresholds:          map[model.ComparisonType]model.Threshold{model.DefaultThresholdKey: higherIsBetter},
				BusinessProcesses:   []string{procProfitability},
				PositiveTrendIsGood: true,
				DiagnosticQuestions: []string{"Did input costs rise?", "Has the product mix shifted toward lower-margin lines?"},
				SuggestedActions:    []string{"Review supplier contracts", "Analyze margin by product line"},
			},
			{
				Name:          "Operating Expense",
				Description:   "Total operating expenses",
				Unit:          "USD",
				DataProductID: "fi_star_schema",
				Thresholds: map[model.ComparisonType]model.Threshold{
					model.DefaultThresholdKey: lowerIsBetter,
					model.ComparisonBudget:    {Green: 0, Yellow: 0.03, Red: 0.08, InverseLogic: true},
				},
				BusinessProcesses:   []string{procExpense, procBudget, procEfficiency},
				Dimensions:          []string{"cost_center", "account"},
				PositiveTrendIsGood: false,
				DiagnosticQuestions: []string{"Which cost centers exceeded plan?", "Are the increases one-off or recurring?"},
				SuggestedActions:    []string{"Freeze discretionary spend in over-budget cost centers", "Review vendor invoices for the period"},
			},
			{
				Name:                "Operating Cash Flow",
				Description:         "Cash generated by operating activities",
				Unit:                "USD",
				DataProductID:       "fi_star_schema",
				Thresholds:          map[model.ComparisonType]model.Threshold{model.DefaultThresholdKey: higherIsBetter},
				BusinessProcesses:   []string{procCashFlow},
				PositiveTrendIsGood: true,
				DiagnosticQuestions: []string{"Did receivables collection slow?", "Did inventory build up?"},
				SuggestedActions:    []string{"Review aged receivables", "Revisit payment terms with large customers"},
			},
			{
				Name:                "Days Sales Outstanding",
				Description:         "Average days to collect receivables",
				Unit:                "days",
				DataProductID:       "fi_star_schema",
				Thresholds:          map[model.ComparisonType]model.Threshold{model.DefaultThresholdKey: lowerIsBetter},
				BusinessProcesses:   []string{procCashFlow},
				PositiveTrendIsGood: false,
				SuggestedActions:    []string{"Escalate overdue accounts"},
			},
		},
		BusinessProcesses: []string{
			procProfitability, procRevenue, procExpense, procCashFlow, procBudget,
			procStrategy, procEfficiency, procSupplyChain,
		},
		DefaultProfile: &def,
	}
}
