package billing

import (
	"testing"
)

func TestComputeBalance(t *testing.T) {
	tests := []struct {
		name   string
		totals PatientTotals
		tb     string
		pb     string
		due    string
	}{
		{"partly paid", PatientTotals{TreatmentTotal: d("500"), TreatmentPaid: d("200"), PharmacyTotal: d("100"), PharmacyPaid: d("100")}, "300", "0", "300"},
		{"nothing owed", PatientTotals{}, "0", "0", "0"},
		{"overpaid", PatientTotals{TreatmentTotal: d("100"), TreatmentPaid: d("150"), PharmacyTotal: d("20")}, "-50", "20", "-30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBalance(tt.totals)
			if !got.TreatmentBalance.Equal(d(tt.tb)) || !got.PharmacyBalance.Equal(d(tt.pb)) || !got.TotalDue.Equal(d(tt.due)) {
				t.Errorf("got %s/%s/%s, want %s/%s/%s",
					got.TreatmentBalance, got.PharmacyBalance, got.TotalDue, tt.tb, tt.pb, tt.due)
			}
		})
	}
}

func TestFormatItemsDetail(t *testing.T) {
	lines := []BillLine{
		{Name: "Amoxicillin", Quantity: 1, Price: d("12.5")},
		{Name: "Unknown item", Quantity: 4, Price: d("0")},
	}
	want := "Amoxicillin (1 x 12.50), Unknown item (4 x 0.00)"
	if got := FormatItemsDetail(lines); got != want {
		t.Errorf("FormatItemsDetail = %q, want %q", got, want)
	}
	if got := FormatItemsDetail(nil); got != "" {
		t.Errorf("expected empty detail for no lines, got %q", got)
	}
}
