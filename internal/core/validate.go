package core

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type (
	// ExpenseInput is the raw form submitted for a new expense. There is no date
	// field: the date is stamped at validation time.
	ExpenseInput struct {
		Concept     string `json:"concept" validate:"required"`
		Amount      string `json:"amount" validate:"required"`
		Description string `json:"description"`
	}

	// ContributionInput is the raw form submitted for a new contribution.
	ContributionInput struct {
		Contributor string `json:"contributor" validate:"required,contributor"`
		Amount      string `json:"amount" validate:"required"`
		Concept     string `json:"concept" validate:"required"`
	}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("contributor", func(fl validator.FieldLevel) bool {
		return Contributor(fl.Field().String()).IsKnown()
	})
	return v
}

// ValidateExpense checks in and builds an Expense dated on now's calendar day.
// The returned expense has no id; the store assigns one.
func ValidateExpense(in ExpenseInput, now time.Time) (Expense, error) {
	in.Concept = strings.TrimSpace(in.Concept)
	in.Amount = strings.TrimSpace(in.Amount)
	in.Description = strings.TrimSpace(in.Description)

	if err := validate.Struct(in); err != nil {
		return Expense{}, translate(err)
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return Expense{}, &ValidationError{Field: "amount", Err: err}
	}
	return Expense{
		Concept:     in.Concept,
		Amount:      amount,
		Date:        DateOf(now),
		Description: in.Description,
		Attachments: []Attachment{},
	}, nil
}

// ValidateContribution checks in and builds a Contribution dated on now's calendar day.
func ValidateContribution(in ContributionInput, now time.Time) (Contribution, error) {
	in.Contributor = strings.TrimSpace(in.Contributor)
	in.Amount = strings.TrimSpace(in.Amount)
	in.Concept = strings.TrimSpace(in.Concept)

	if err := validate.Struct(in); err != nil {
		return Contribution{}, translate(err)
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return Contribution{}, &ValidationError{Field: "amount", Err: err}
	}
	return Contribution{
		Contributor: Contributor(in.Contributor),
		Amount:      amount,
		Concept:     in.Concept,
		Date:        DateOf(now),
	}, nil
}

// translate maps the first validator failure onto the record error taxonomy.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Field() {
	case "amount":
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	case "contributor":
		return &ValidationError{Field: "contributor", Err: ErrInvalidContributor}
	default:
		return MissingField(fe.Field())
	}
}
