package model

import "fmt"

// ReportKind identifies one of the back-office report types.
type ReportKind string

// Report kinds handled by the importer.
const (
	KindCashDiscrepancy ReportKind = "cash_discrepancy"
	KindPaymentMethods  ReportKind = "payment_methods"
	KindDailySales      ReportKind = "daily_sales"
	KindSangria         ReportKind = "sangria"
	KindBankStatement   ReportKind = "bank_statement"
	KindRateio          ReportKind = "rateio"
	KindPayroll         ReportKind = "payroll"
)

// AllReportKinds lists every supported kind in display order.
func AllReportKinds() []ReportKind {
	return []ReportKind{
		KindCashDiscrepancy,
		KindPaymentMethods,
		KindDailySales,
		KindSangria,
		KindBankStatement,
		KindRateio,
		KindPayroll,
	}
}

// ParseReportKind validates a kind name.
func ParseReportKind(s string) (ReportKind, error) {
	for _, k := range AllReportKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown report kind %q", s)
}

// MergeStrategy selects how a parsed batch is reconciled with stored rows.
type MergeStrategy string

// Merge strategies.
const (
	// StrategyKey skips incoming rows whose duplicate key is already stored.
	StrategyKey MergeStrategy = "key"
	// StrategyDateRange replaces every stored row on a date present in the batch.
	StrategyDateRange MergeStrategy = "date_range"
)
