package insights

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medibots/ml-platform/pkg/common/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	claimSystemPrompt       = "You are a healthcare revenue cycle AI assistant. Give clear, personalized insights to patients about their insurance claim likelihood based on their specific information. Be concise, actionable, and address the patient by context."
	invoiceSystemPrompt     = "You are a healthcare billing AI assistant. Give clear insights about invoice payment timing likelihood. Be concise."
	appointmentSystemPrompt = "You are a healthcare scheduling AI assistant. Give clear insights about appointment attendance likelihood. Be concise and helpful."
)

var amountPrinter = message.NewPrinter(language.English)

// BuildPrompt renders the messages for one prediction.
func BuildPrompt(d models.Domain, rec models.Record, result models.PredictionResult, stats models.HistoricalStats) Prompt {
	details := detailsJSON(rec)
	confidence := fmt.Sprintf("%.1f%% confidence", result.Probability*100)
	adverse := result.Prediction == 1

	var b strings.Builder
	switch d {
	case models.DomainDenial:
		name := firstString(rec, "the patient", "patient_name", "patientName")
		verdict := "ACCEPTANCE"
		if adverse {
			verdict = "DENIAL"
		}
		fmt.Fprintf(&b, "Patient: %s\n", name)
		fmt.Fprintf(&b, "Insurance: %s\n", firstString(rec, "Unknown", "insurance_provider"))
		fmt.Fprintf(&b, "Claim amount: %s\n", formatAmount(firstValue(rec, "claim_amount", "amount")))
		fmt.Fprintf(&b, "Full claim details: %s\n", details)
		fmt.Fprintf(&b, "ML Prediction: %s with %s\n", verdict, confidence)
		fmt.Fprintf(&b, "Historical data: %.1f%% acceptance, %.1f%% denial from %d past claims.\n\n",
			stats.GoodRate*100, stats.BadRate*100, stats.Total)
		fmt.Fprintf(&b, "Provide 2-3 personalized, actionable insights for %s based on their claim amount, insurance, and profile. Focus on what improves acceptance chances. Address them directly.", name)
		return Prompt{System: claimSystemPrompt, User: b.String()}

	case models.DomainPaymentDelay:
		verdict := "ON-TIME PAYMENT"
		if adverse {
			verdict = "PAYMENT DELAY LIKELY"
		}
		fmt.Fprintf(&b, "Invoice details: %s\n", details)
		fmt.Fprintf(&b, "ML Prediction: %s with %s\n", verdict, confidence)
		fmt.Fprintf(&b, "Historical data: %.1f%% on-time, %.1f%% delayed from %d past invoices.\n\n",
			stats.GoodRate*100, stats.BadRate*100, stats.Total)
		b.WriteString("Provide 2-3 concise insights for the patient about payment likelihood and tips to avoid delay.")
		return Prompt{System: invoiceSystemPrompt, User: b.String()}

	default:
		verdict := "LIKELY TO ATTEND"
		if adverse {
			verdict = "NO-SHOW RISK"
		}
		fmt.Fprintf(&b, "Appointment details: %s\n", details)
		fmt.Fprintf(&b, "ML Prediction: %s with %s\n", verdict, confidence)
		fmt.Fprintf(&b, "Historical data: %.1f%% attended, %.1f%% no-show from %d past appointments.\n\n",
			stats.GoodRate*100, stats.BadRate*100, stats.Total)
		b.WriteString("Provide 2-3 concise insights and tips to reduce no-show risk.")
		return Prompt{System: appointmentSystemPrompt, User: b.String()}
	}
}

func detailsJSON(rec models.Record) string {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Sprint(map[string]interface{}(rec))
	}
	return string(raw)
}

func firstValue(rec models.Record, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil && v != "" {
			return v
		}
	}
	return nil
}

func firstString(rec models.Record, fallback string, keys ...string) string {
	if v := firstValue(rec, keys...); v != nil {
		return fmt.Sprint(v)
	}
	return fallback
}

// formatAmount renders rupee amounts with thousands grouping.
func formatAmount(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return amountPrinter.Sprintf("₹%.0f", n)
	case int64:
		return amountPrinter.Sprintf("₹%d", n)
	case int:
		return amountPrinter.Sprintf("₹%d", n)
	case nil:
		return "not provided"
	default:
		return fmt.Sprint(n)
	}
}
