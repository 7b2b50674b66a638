package normalizer

import "github.com/medibots/ml-platform/pkg/common/models"

func num(name string, def interface{}, aliases ...string) Field {
	return Field{Name: name, Type: FieldNumber, Default: def, Aliases: aliases}
}

func flag(name string, def interface{}) Field {
	return Field{Name: name, Type: FieldBoolean, Default: def}
}

func cat(name string, def interface{}) Field {
	return Field{Name: name, Type: FieldCategory, Default: def}
}

// DefaultContracts mirrors the columns and fallbacks the backend has always
// sent for each domain.
func DefaultContracts() Contracts {
	return Contracts{
		models.DomainDenial: {
			Domain: models.DomainDenial,
			Fields: []Field{
				num("claim_amount", 5000, "amount"),
				num("coverage_limit", 50000),
				num("deductible_amount", 500),
				cat("insurance_provider", "Unknown"),
				cat("policy_type", "PPO"),
				flag("preauthorization_required", false),
				flag("preauthorization_obtained", nil),
				cat("primary_icd_code", "J06.9"),
				cat("secondary_icd_code", ""),
				cat("cpt_code", "99213"),
				cat("procedure_category", "Outpatient"),
				num("medical_necessity_score", 70),
				num("prior_denial_count", 0),
				num("resubmission_count", 0),
				num("days_to_submission", 30),
				flag("documentation_complete", true),
				cat("claim_type", "OUTPATIENT"),
				num("patient_age", 40),
				cat("patient_gender", "MALE"),
				flag("chronic_condition_flag", false),
				cat("doctor_specialization", nil),
				cat("hospital_tier", "TIER2"),
				num("hospital_claim_success_rate", 0.8),
			},
		},
		models.DomainPaymentDelay: {
			Domain: models.DomainPaymentDelay,
			Fields: []Field{
				num("total_amount", nil, "invoice_amount"),
				num("days_to_payment", 0),
				cat("payer_type", "SELF"),
				cat("invoice_category", "CONSULTATION"),
				num("reminder_count", 0),
				flag("installment_plan", false),
				num("historical_avg_payment_delay", 14),
				num("patient_age", 40),
				cat("patient_gender", "MALE"),
				num("previous_late_payments", 0),
				cat("payment_status", "UNPAID"),
			},
		},
		models.DomainNoShow: {
			Domain: models.DomainNoShow,
			Fields: []Field{
				num("booking_lead_time_days", 7),
				cat("appointment_type", "CONSULTATION"),
				cat("time_slot", "10:00"),
				cat("weekday", "Monday"),
				num("previous_no_show_count", 0),
				num("reminder_count", 1),
				flag("sms_reminder_sent", true),
				num("distance_from_hospital_km", 10),
				num("patient_age", 40),
				cat("patient_gender", "MALE"),
				num("consultation_fee", 300),
				num("previous_late_payments", 0),
			},
		},
	}
}
