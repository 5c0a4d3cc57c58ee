package ingest

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/Zerofisher/megatable/pkg/model"
)

// RecordEnv is the environment for record filter expressions, e.g.
//
//	department == "Sales" && salary > 80000
//	status in ["active", "pending"] and email endsWith "@example.com"
type RecordEnv struct {
	ID         string `expr:"id"`
	Name       string `expr:"name"`
	Email      string `expr:"email"`
	Role       string `expr:"role"`
	Department string `expr:"department"`
	Status     string `expr:"status"`
	Location   string `expr:"location"`
	Salary     int64  `expr:"salary"` // 0 when absent
	Bio        string `expr:"bio"`

	HasSalary bool `expr:"has_salary"`
	HasBio    bool `expr:"has_bio"`
}

// CompileFilter compiles a boolean record filter expression.
// An empty expression keeps every record.
func CompileFilter(filterStr string) (func(*model.Record) bool, error) {
	if strings.TrimSpace(filterStr) == "" {
		return nil, nil
	}

	program, err := expr.Compile(filterStr, expr.Env(RecordEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter '%s': %w", filterStr, err)
	}

	return func(r *model.Record) bool {
		return match(program, r)
	}, nil
}

func match(program *vm.Program, r *model.Record) bool {
	result, err := expr.Run(program, recordToEnv(r))
	if err != nil {
		return false
	}
	b, ok := result.(bool)
	return ok && b
}

func recordToEnv(r *model.Record) RecordEnv {
	env := RecordEnv{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email,
		Role:       r.Role,
		Department: r.Department,
		Status:     r.Status,
		Location:   r.Location,
	}
	if r.Salary != nil {
		env.Salary = *r.Salary
		env.HasSalary = true
	}
	if r.Bio != nil {
		env.Bio = *r.Bio
		env.HasBio = true
	}
	return env
}
