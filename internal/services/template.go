package services

import (
	"regexp"
	"strconv"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
)

var (
	placeholderName        = regexp.MustCompile(`(?i){{name}}`)
	placeholderEmail       = regexp.MustCompile(`(?i){{email}}`)
	placeholderTotalSpends = regexp.MustCompile(`(?i){{totalSpends}}`)
	placeholderVisitCount  = regexp.MustCompile(`(?i){{visitCount}}`)
)

// RenderTemplate substitutes the customer's fields into the campaign
// message template. Placeholders match case-insensitively; numeric
// fields render as 0 when the customer has no recorded value.
func RenderTemplate(template string, customer *model.Customer) string {
	out := placeholderName.ReplaceAllString(template, customer.Name)
	out = placeholderEmail.ReplaceAllString(out, customer.Email)
	out = placeholderTotalSpends.ReplaceAllString(out, strconv.FormatInt(customer.TotalSpends, 10))
	out = placeholderVisitCount.ReplaceAllString(out, strconv.FormatInt(customer.VisitCount, 10))
	return out
}
