package notify

import (
	"fmt"
	"time"

	"bynlora/internal/core"
)

// BudgetAlertHTML renders the body for a threshold-crossing alert.
// Amounts are already formatted as decimal strings by core.Money.
func BudgetAlertHTML(user core.User, threshold, percentage int, spent, remaining core.Money) string {
	name := user.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(`<h2>Budget Alert</h2>
<p>Hi %s,</p>
<p>You have used <strong>%d%%</strong> of your monthly budget.</p>
<ul>
  <li>Spent so far: %s</li>
  <li>Monthly budget: %s</li>
  <li>Remaining: %s</li>
</ul>
<p>This alert fired because you crossed the %d%% mark.</p>`,
		name, percentage, spent, user.Budget, remaining, threshold)
}

// MonthlyReminderHTML renders the start-of-month reminder body.
func MonthlyReminderHTML(user core.User, month time.Month) string {
	name := user.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(`<h2>A new month begins</h2>
<p>Hi %s,</p>
<p>Your %s budget of %s is ready. Alerts from last month have been reset.</p>`,
		name, month, user.Budget)
}
