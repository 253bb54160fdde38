package core

import (
	"slices"

	"github.com/shopspring/decimal"
)

// DefaultRecentLimit is how many recent records the dashboard shows.
const DefaultRecentLimit = 3

const (
	Surplus BalanceStatus = "surplus"
	Deficit BalanceStatus = "deficit"
)

type (
	BalanceStatus string

	// ContributorTotal is the summed amount given by one contributor.
	ContributorTotal struct {
		Contributor Contributor `json:"contributor"`
		Amount      float64     `json:"amount"`
	}

	// ContributorTotals preserves first-occurrence order of contributors.
	ContributorTotals []ContributorTotal

	// BalanceSummary is contributions minus expenses with its classification.
	BalanceSummary struct {
		Contributions float64       `json:"contributions"`
		Expenses      float64       `json:"expenses"`
		Net           float64       `json:"net"`
		Status        BalanceStatus `json:"status"`
	}

	// Dashboard is the home view: totals, balance and latest activity.
	Dashboard struct {
		Balance             BalanceSummary    `json:"balance"`
		ByContributor       ContributorTotals `json:"by_contributor"`
		RecentExpenses      []Expense         `json:"recent_expenses"`
		RecentContributions []Contribution    `json:"recent_contributions"`
	}
)

// Total sums the amount of every record. Total of nothing is 0.
func Total[R Record](records []R) float64 {
	return total(records).InexactFloat64()
}

func total[R Record](records []R) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(decimal.NewFromFloat(r.RecordAmount()))
	}
	return sum
}

// GroupByContributor sums contributions per contributor. The key is the exact
// contributor name; order is first occurrence in cs.
func GroupByContributor(cs []Contribution) ContributorTotals {
	sums := make(map[Contributor]decimal.Decimal)
	var order []Contributor
	for _, c := range cs {
		if _, seen := sums[c.Contributor]; !seen {
			order = append(order, c.Contributor)
			sums[c.Contributor] = decimal.Zero
		}
		sums[c.Contributor] = sums[c.Contributor].Add(decimal.NewFromFloat(c.Amount))
	}
	out := make(ContributorTotals, 0, len(order))
	for _, name := range order {
		out = append(out, ContributorTotal{Contributor: name, Amount: sums[name].InexactFloat64()})
	}
	return out
}

// Map returns the mapping view of the totals.
func (t ContributorTotals) Map() map[Contributor]float64 {
	m := make(map[Contributor]float64, len(t))
	for _, ct := range t {
		m[ct.Contributor] = ct.Amount
	}
	return m
}

// Sum adds every contributor total.
func (t ContributorTotals) Sum() float64 {
	amounts := make([]float64, len(t))
	for i, ct := range t {
		amounts[i] = ct.Amount
	}
	return sumAmounts(amounts...).InexactFloat64()
}

// Balance computes total(contributions) - total(expenses).
// A zero net counts as a surplus.
func Balance(cs []Contribution, es []Expense) BalanceSummary {
	in := total(cs)
	out := total(es)
	net := in.Sub(out)
	status := Surplus
	if net.IsNegative() {
		status = Deficit
	}
	return BalanceSummary{
		Contributions: in.InexactFloat64(),
		Expenses:      out.InexactFloat64(),
		Net:           net.InexactFloat64(),
		Status:        status,
	}
}

// IsSurplus reports whether the balance is non-negative.
func (b BalanceSummary) IsSurplus() bool {
	return b.Status == Surplus
}

// MostRecent returns up to n records ordered by date descending. records must
// be in insertion order; equal dates put the later insertion first.
func MostRecent[R Record](records []R, n int) []R {
	if n <= 0 || len(records) == 0 {
		return []R{}
	}
	out := slices.Clone(records)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b R) int {
		return b.RecordDate().Compare(a.RecordDate().Time)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// BuildDashboard computes the home view from the full collections.
func BuildDashboard(cs []Contribution, es []Expense, recent int) Dashboard {
	return Dashboard{
		Balance:             Balance(cs, es),
		ByContributor:       GroupByContributor(cs),
		RecentExpenses:      MostRecent(es, recent),
		RecentContributions: MostRecent(cs, recent),
	}
}
