package insights

import (
	"fmt"

	"github.com/medibots/ml-platform/pkg/common/models"
)

// Template returns the fixed explanation for a domain and label, filled
// from the historical stats.
func Template(d models.Domain, prediction int, stats models.HistoricalStats) string {
	adverse := prediction == 1
	switch d {
	case models.DomainDenial:
		if adverse {
			return fmt.Sprintf("Based on %d historical claims, %.0f%% were denied. Your claim has elevated denial risk. Tip: Ensure documentation is complete and pre-authorization is obtained when required.",
				stats.Total, stats.BadRate*100)
		}
		return fmt.Sprintf("Historical acceptance rate is %.0f%%. Your profile suggests a favorable outcome. Complete documentation and timely submission improve approval odds.",
			stats.GoodRate*100)
	case models.DomainPaymentDelay:
		if adverse {
			return fmt.Sprintf("Based on %d historical invoices, %.0f%% experienced payment delay. Consider setting reminders or opting for early payment to avoid late fees.",
				stats.Total, stats.BadRate*100)
		}
		return fmt.Sprintf("Historical on-time rate is %.0f%%. Your invoice profile suggests timely payment. Keep payment reminders enabled.",
			(1-stats.BadRate)*100)
	default:
		if adverse {
			return fmt.Sprintf("Based on %d historical appointments, %.0f%% were no-shows. Enable SMS reminders and plan travel in advance to improve attendance.",
				stats.Total, stats.BadRate*100)
		}
		return fmt.Sprintf("Historical attendance rate is %.0f%%. Your profile suggests you're likely to attend. SMS reminders help reduce last-minute cancellations.",
			(1-stats.BadRate)*100)
	}
}
