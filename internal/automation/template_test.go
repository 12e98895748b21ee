package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

func TestRenderSubstitutesVariables(t *testing.T) {
	vars := map[string]string{
		"client_name":    "Alpha",
		"period_display": "03/2025",
	}
	out := Render("Αγαπητέ {client_name}, η περίοδος {period_display} ολοκληρώθηκε", vars)
	assert.Equal(t, "Αγαπητέ Alpha, η περίοδος 03/2025 ολοκληρώθηκε", out)
}

func TestRenderUnresolvedStaysLiteral(t *testing.T) {
	out := Render("Hello {client_name}, deadline {deadline}", map[string]string{"client_name": "Alpha"})
	assert.Equal(t, "Hello Alpha, deadline {deadline}", out)

	// No variables at all
	assert.Equal(t, "{unknown}", Render("{unknown}", nil))
}

func TestRenderIgnoresMalformedBraces(t *testing.T) {
	vars := map[string]string{"a": "x"}
	assert.Equal(t, "{ a } {1bad} x", Render("{ a } {1bad} {a}", vars))
}

func TestBuildContext(t *testing.T) {
	completed := time.Date(2025, 4, 18, 14, 0, 0, 0, time.Local)
	o := &model.Obligation{
		Month: 3, Year: 2025,
		Deadline:    time.Date(2025, 4, 20, 0, 0, 0, 0, time.Local),
		CompletedAt: &completed,
		Client:      &model.Client{Name: "Alpha", AFM: "123456789", Email: "alpha@example.com"},
		ObligationType: &model.ObligationType{Code: "FPA", Name: "VAT return"},
	}

	vars := BuildContext(o, "Practice", "Maria")
	assert.Equal(t, "Alpha", vars["client_name"])
	assert.Equal(t, "123456789", vars["client_afm"])
	assert.Equal(t, "alpha@example.com", vars["client_email"])
	assert.Equal(t, "VAT return", vars["obligation_type"])
	assert.Equal(t, "FPA", vars["obligation_code"])
	assert.Equal(t, "03/2025", vars["period_display"])
	assert.Equal(t, "03", vars["month"])
	assert.Equal(t, "2025", vars["year"])
	assert.Equal(t, "20/04/2025", vars["deadline"])
	assert.Equal(t, "18/04/2025", vars["completed_date"])
	assert.Equal(t, "Practice", vars["company_name"])
	assert.Equal(t, "Maria", vars["accountant_name"])
}

func TestBuildContextPartialData(t *testing.T) {
	o := &model.Obligation{Month: 1, Year: 2025}
	vars := BuildContext(o, "Practice", "")
	assert.Equal(t, "01/2025", vars["period_display"])
	_, hasClient := vars["client_name"]
	assert.False(t, hasClient)
	_, hasDeadline := vars["deadline"]
	assert.False(t, hasDeadline)
}
