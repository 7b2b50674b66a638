package models

import "strings"

// Domain identifies one prediction problem and its model artifact.
type Domain string

const (
	DomainDenial       Domain = "denial"
	DomainPaymentDelay Domain = "payment-delay"
	DomainNoShow       Domain = "no-show"
)

// DomainSpec binds a domain to the names it is addressed by on each endpoint
// family and to the keys of its historical statistics.
type DomainSpec struct {
	Domain     Domain
	Dataset    string // stats endpoint name, e.g. "claims"
	Subject    string // insights endpoint name, e.g. "claim"
	FlagColumn string // 1 marks the adverse outcome

	GoodRateKey  string
	BadRateKey   string
	TotalKey     string
	GoodCountKey string
	BadCountKey  string
	GoodPctKey   string
	BadPctKey    string

	Default HistoricalStats
}

var domainOrder = []Domain{DomainDenial, DomainPaymentDelay, DomainNoShow}

var domainSpecs = map[Domain]DomainSpec{
	DomainDenial: {
		Domain:       DomainDenial,
		Dataset:      "claims",
		Subject:      "claim",
		FlagColumn:   "denial_flag",
		GoodRateKey:  "acceptance_rate",
		BadRateKey:   "denial_rate",
		TotalKey:     "total_claims",
		GoodCountKey: "accepted_count",
		BadCountKey:  "denied_count",
		GoodPctKey:   "acceptance_rate_pct",
		BadPctKey:    "denial_rate_pct",
		Default: HistoricalStats{
			Domain: DomainDenial, GoodRate: 0.75, BadRate: 0.25, Total: 400, Source: StatsSourceDefault,
		},
	},
	DomainPaymentDelay: {
		Domain:       DomainPaymentDelay,
		Dataset:      "invoices",
		Subject:      "invoice",
		FlagColumn:   "payment_delay_flag",
		GoodRateKey:  "on_time_rate",
		BadRateKey:   "delay_rate",
		TotalKey:     "total_invoices",
		GoodCountKey: "on_time_count",
		BadCountKey:  "delayed_count",
		GoodPctKey:   "on_time_rate_pct",
		BadPctKey:    "delay_rate_pct",
		Default: HistoricalStats{
			Domain: DomainPaymentDelay, GoodRate: 0.7, BadRate: 0.3, Total: 350, Source: StatsSourceDefault,
		},
	},
	DomainNoShow: {
		Domain:       DomainNoShow,
		Dataset:      "appointments",
		Subject:      "appointment",
		FlagColumn:   "no_show_flag",
		GoodRateKey:  "attendance_rate",
		BadRateKey:   "no_show_rate",
		TotalKey:     "total_appointments",
		GoodCountKey: "attended_count",
		BadCountKey:  "no_show_count",
		GoodPctKey:   "attendance_rate_pct",
		BadPctKey:    "no_show_rate_pct",
		Default: HistoricalStats{
			Domain: DomainNoShow, GoodRate: 0.72, BadRate: 0.28, Total: 250, Source: StatsSourceDefault,
		},
	},
}

// Domains returns every known domain in a stable order.
func Domains() []Domain {
	out := make([]Domain, len(domainOrder))
	copy(out, domainOrder)
	return out
}

func (d Domain) Spec() (DomainSpec, bool) {
	spec, ok := domainSpecs[d]
	return spec, ok
}

func (d Domain) Valid() bool {
	_, ok := domainSpecs[d]
	return ok
}

func (d Domain) String() string {
	return string(d)
}

// ParseDomain accepts the model name used by the predict endpoints.
func ParseDomain(name string) (Domain, bool) {
	d := Domain(strings.ToLower(strings.TrimSpace(name)))
	return d, d.Valid()
}

// DomainForDataset maps a stats endpoint name ("claims") to its domain.
func DomainForDataset(name string) (Domain, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range domainOrder {
		if domainSpecs[d].Dataset == name {
			return d, true
		}
	}
	return "", false
}

// DomainForSubject maps an insights endpoint name ("claim") to its domain.
func DomainForSubject(name string) (Domain, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range domainOrder {
		if domainSpecs[d].Subject == name {
			return d, true
		}
	}
	return "", false
}
