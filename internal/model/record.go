package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/kartoza/solvency/internal/errors"
)

// MaritalStatus is the encoded marital status used as a model feature
type MaritalStatus int

const (
	Single   MaritalStatus = 1
	Married  MaritalStatus = 2
	Divorced MaritalStatus = 3
)

// MaritalStatuses lists the accepted codes in display order
var MaritalStatuses = []MaritalStatus{Single, Married, Divorced}

// Valid reports whether m is one of the known codes
func (m MaritalStatus) Valid() bool {
	return m >= Single && m <= Divorced
}

func (m MaritalStatus) String() string {
	switch m {
	case Single:
		return "single"
	case Married:
		return "married"
	case Divorced:
		return "divorced"
	default:
		return fmt.Sprintf("marital(%d)", int(m))
	}
}

// Age bounds accepted by the form
const (
	MinAge = 18
	MaxAge = 100
)

// Column names the scaler and classifiers are fitted with
const (
	ColumnAge      = "Age"
	ColumnMarital  = "Marital"
	ColumnExpenses = "Expenses"
	ColumnIncome   = "Income"
	ColumnAmount   = "Amount"
	ColumnPrice    = "Price"
)

// Columns returns the canonical feature column order
func Columns() []string {
	return []string{ColumnAge, ColumnMarital, ColumnExpenses, ColumnIncome, ColumnAmount, ColumnPrice}
}

// ClientRecord holds the attributes collected for one credit request
type ClientRecord struct {
	Age      int           `json:"age"`
	Marital  MaritalStatus `json:"marital"`
	Expenses float64       `json:"expenses"`
	Income   float64       `json:"income"`
	Amount   float64       `json:"amount"`
	Price    float64       `json:"price"`
}

// DefaultRecord returns the values the form starts with
func DefaultRecord() ClientRecord {
	return ClientRecord{
		Age:      35,
		Marital:  Single,
		Expenses: 500,
		Income:   2000,
		Amount:   10000,
		Price:    12000,
	}
}

// Column returns the value of the named column
func (r ClientRecord) Column(name string) (float64, bool) {
	switch name {
	case ColumnAge:
		return float64(r.Age), true
	case ColumnMarital:
		return float64(r.Marital), true
	case ColumnExpenses:
		return r.Expenses, true
	case ColumnIncome:
		return r.Income, true
	case ColumnAmount:
		return r.Amount, true
	case ColumnPrice:
		return r.Price, true
	}
	return 0, false
}

// Validate checks the input constraints of the form
func (r ClientRecord) Validate() error {
	var problems []string

	if r.Age < MinAge || r.Age > MaxAge {
		problems = append(problems, fmt.Sprintf("age %d outside [%d,%d]", r.Age, MinAge, MaxAge))
	}
	if !r.Marital.Valid() {
		problems = append(problems, fmt.Sprintf("marital status %d is not 1, 2 or 3", int(r.Marital)))
	}
	amounts := []struct {
		name  string
		value float64
	}{
		{"expenses", r.Expenses},
		{"income", r.Income},
		{"amount", r.Amount},
		{"price", r.Price},
	}
	for _, a := range amounts {
		if math.IsNaN(a.value) || math.IsInf(a.value, 0) {
			problems = append(problems, a.name+" is not a finite number")
		} else if a.value < 0 {
			problems = append(problems, fmt.Sprintf("%s %v is negative", a.name, a.value))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.WithHint(
		errors.Wrap(errors.ErrInvalidRecord, strings.Join(problems, "; ")),
		strings.Join(problems, "; "),
	)
}

// Align arranges the record into a vector following the given column names
func Align(r ClientRecord, names []string) ([]float64, error) {
	vec := make([]float64, len(names))
	for i, name := range names {
		v, ok := r.Column(name)
		if !ok {
			return nil, errors.Newf("column %q is not a client attribute", name)
		}
		vec[i] = v
	}
	return vec, nil
}
