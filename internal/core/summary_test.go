package core

import (
	"math"
	"reflect"
	"slices"
	"testing"
)

func exp(id string, amount float64, d Date) Expense {
	return Expense{ID: id, Concept: id, Amount: amount, Date: d}
}

func contrib(id string, who Contributor, amount float64, d Date) Contribution {
	return Contribution{ID: id, Contributor: who, Amount: amount, Concept: id, Date: d}
}

func TestTotal(t *testing.T) {
	tests := []struct {
		name string
		in   []Expense
		want float64
	}{
		{"empty", []Expense{}, 0},
		{"nil", nil, 0},
		{"mixed", []Expense{{Amount: 10}, {Amount: 5.5}}, 15.5},
		{"decimal", []Expense{{Amount: 0.1}, {Amount: 0.2}}, 0.3},
	}
	for _, tt := range tests {
		if got := Total(tt.in); got != tt.want {
			t.Errorf("%s: Total = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestGroupByContributor(t *testing.T) {
	d := NewDate(2025, 1, 1)
	cs := []Contribution{
		contrib("1", PedroJose, 100, d),
		contrib("2", AnaLucia, 30.25, d),
		contrib("3", PedroJose, 50, d),
		contrib("4", "pedro josé", 1, d),
	}
	got := GroupByContributor(cs)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(got), got)
	}
	if got[0] != (ContributorTotal{PedroJose, 150}) || got[1] != (ContributorTotal{AnaLucia, 30.25}) {
		t.Errorf("first-seen order broken: %+v", got)
	}
	if got[2].Contributor != "pedro josé" {
		t.Errorf("case variant merged: %+v", got[2])
	}
	if again := GroupByContributor(cs); !reflect.DeepEqual(got, again) {
		t.Errorf("not stable across calls: %+v vs %+v", got, again)
	}
	if got.Sum() != Total(cs) {
		t.Errorf("Sum = %v, Total = %v", got.Sum(), Total(cs))
	}
	if got.Map()[PedroJose] != 150 {
		t.Errorf("Map()[PedroJose] = %v", got.Map()[PedroJose])
	}
	if len(GroupByContributor(nil)) != 0 {
		t.Error("nil input should give no groups")
	}
}

func TestGroupSumMatchesTotal(t *testing.T) {
	d := NewDate(2025, 1, 1)
	var cs []Contribution
	who := KnownContributors()
	for i := 0; i < 40; i++ {
		cs = append(cs, contrib("x", who[i%len(who)], float64(i)*1.1, d))
	}
	if diff := math.Abs(Total(cs) - GroupByContributor(cs).Sum()); diff > 1e-9 {
		t.Fatalf("group sum differs from total by %v", diff)
	}
}

func TestBalance(t *testing.T) {
	tests := []struct {
		name   string
		cs     []Contribution
		es     []Expense
		net    float64
		status BalanceStatus
	}{
		{"surplus", []Contribution{{Amount: 100}}, []Expense{{Amount: 40}}, 60, Surplus},
		{"deficit", []Contribution{{Amount: 40}}, []Expense{{Amount: 100}}, -60, Deficit},
		{"even", nil, nil, 0, Surplus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Balance(tt.cs, tt.es)
			if b.Net != tt.net || b.Status != tt.status {
				t.Fatalf("Balance = %+v, want net %v status %v", b, tt.net, tt.status)
			}
			if b.IsSurplus() != (tt.status == Surplus) {
				t.Errorf("IsSurplus = %v for %v", b.IsSurplus(), tt.status)
			}
		})
	}
}

func TestMostRecent(t *testing.T) {
	es := []Expense{
		exp("a", 1, NewDate(2025, 1, 1)),
		exp("b", 1, NewDate(2025, 3, 1)),
		exp("c", 1, NewDate(2025, 2, 1)),
		exp("d", 1, NewDate(2025, 3, 1)),
		exp("e", 1, NewDate(2024, 12, 31)),
	}
	got := MostRecent(es, 3)
	if want := []string{"d", "b", "c"}; !slices.Equal(ids(got), want) {
		t.Fatalf("MostRecent = %v, want %v (ties put later insertion first)", ids(got), want)
	}
	if es[0].ID != "a" {
		t.Error("input was reordered")
	}

	for _, tc := range []struct {
		in   []Expense
		n    int
		want int
	}{
		{es[:2], 3, 2},
		{es, 0, 0},
		{[]Expense{}, 3, 0},
		{es, 10, 5},
	} {
		if got := len(MostRecent(tc.in, tc.n)); got != tc.want {
			t.Errorf("len(MostRecent(%d records, %d)) = %d, want %d", len(tc.in), tc.n, got, tc.want)
		}
	}
}

func TestBuildDashboard(t *testing.T) {
	d := NewDate(2025, 4, 2)
	db := BuildDashboard(
		[]Contribution{contrib("1", JuanCarlos, 500, d), contrib("2", MariaElena, 250, d)},
		[]Expense{exp("x", 800, d)},
		1,
	)
	if db.Balance.Status != Deficit || db.Balance.Net != -50 {
		t.Errorf("Balance = %+v", db.Balance)
	}
	if len(db.ByContributor) != 2 {
		t.Errorf("ByContributor = %+v", db.ByContributor)
	}
	if len(db.RecentContributions) != 1 || db.RecentContributions[0].ID != "2" {
		t.Errorf("RecentContributions = %+v", db.RecentContributions)
	}
	if len(db.RecentExpenses) != 1 {
		t.Errorf("RecentExpenses = %+v", db.RecentExpenses)
	}
}

func ids[R Record](rs []R) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.RecordID()
	}
	return out
}
