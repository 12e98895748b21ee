package automation

import (
	"fmt"
	"regexp"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

const dateLayout = "02/01/2006"

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// BuildContext collects the template variables for one obligation:
// client, type and period data plus the practice's own identity.
func BuildContext(o *model.Obligation, companyName, accountantName string) map[string]string {
	vars := map[string]string{
		"period_display":  o.PeriodDisplay(),
		"month":           fmt.Sprintf("%02d", o.Month),
		"year":            fmt.Sprintf("%04d", o.Year),
		"company_name":    companyName,
		"accountant_name": accountantName,
	}
	if !o.Deadline.IsZero() {
		vars["deadline"] = o.Deadline.Format(dateLayout)
	}
	if o.CompletedAt != nil {
		vars["completed_date"] = o.CompletedAt.Format(dateLayout)
	}
	if o.Client != nil {
		vars["client_name"] = o.Client.Name
		vars["client_afm"] = o.Client.AFM
		vars["client_email"] = o.Client.Email
	}
	if o.ObligationType != nil {
		vars["obligation_type"] = o.ObligationType.Name
		vars["obligation_code"] = o.ObligationType.Code
	}
	return vars
}

// Render substitutes {variable} placeholders from vars. Substitution is
// fail-soft: an unresolved placeholder stays as literal {name} text
// instead of failing the job.
func Render(text string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		key := match[1 : len(match)-1]
		if val, ok := vars[key]; ok {
			return val
		}
		return match
	})
}

// RenderStringMap is Render over a generic context map as stored on a
// queued job, where values round-trip through JSON as interface{}.
func RenderStringMap(text string, ctx map[string]interface{}) string {
	vars := make(map[string]string, len(ctx))
	for k, v := range ctx {
		if s, ok := v.(string); ok {
			vars[k] = s
		}
	}
	return Render(text, vars)
}
