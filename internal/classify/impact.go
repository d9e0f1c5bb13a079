package classify

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ashita-ai/beacon/internal/model"
)

// Impact renders the business-impact sentence for a measurement. It picks
// one of a fixed set of templates by whether a baseline exists, whether the
// baseline is zero, and the direction of change.
func Impact(def model.KPIDefinition, v model.KPIValue, pct *float64) string {
	baseline := humanize(string(v.ComparisonType))
	switch {
	case v.ComparisonValue == nil:
		return fmt.Sprintf("%s is %s with no %s baseline available, so its health cannot be judged.",
			def.Name, formatValue(v.Value, v.Unit), baseline)
	case pct == nil:
		return fmt.Sprintf("%s moved from a zero %s baseline to %s, so a percent change is undefined.",
			def.Name, baseline, formatValue(v.Value, v.Unit))
	case *pct == 0:
		return fmt.Sprintf("%s is unchanged versus the %s baseline.", def.Name, baseline)
	}

	increased := *pct > 0
	direction := "decreased"
	if increased {
		direction = "increased"
	}
	verdict := "unfavorable"
	if increased == def.PositiveTrendIsGood {
		verdict = "favorable"
	}
	return fmt.Sprintf("%s %s %s versus the %s baseline, which is %s given this KPI's target direction.",
		def.Name, direction, formatPercent(*pct), baseline, verdict)
}

func formatPercent(frac float64) string {
	return strconv.FormatFloat(math.Abs(frac)*100, 'f', 1, 64) + "%"
}

func formatValue(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if unit != "" {
		s += " " + unit
	}
	return s
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}
