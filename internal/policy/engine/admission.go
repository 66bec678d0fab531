// Package engine evaluates account admission for OTP flows with an OPA Rego policy.
package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	accountdomain "otp-verification-service/internal/account/domain"
)

const admissionQuery = "data.otp.account_admission.deny_reason"

// DefaultAdmissionPolicy denies in precedence order: missing, deleted, deactivated, then any
// status other than the active one.
const DefaultAdmissionPolicy = `package otp.account_admission

deny_reason := "not_found" if {
	not input.found
} else := "deleted" if {
	input.account.is_deleted
} else := "deactivated" if {
	input.account.is_deactivated
} else := "not_active" if {
	input.account.status_code != input.active_status
} else := "" if {
	true
}
`

// Deny reasons produced by the admission policy.
const (
	ReasonNotFound    = "not_found"
	ReasonDeleted     = "deleted"
	ReasonDeactivated = "deactivated"
	ReasonNotActive   = "not_active"
)

// Decision is the outcome of an admission check. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

// OPAAdmission decides whether a resolved account may receive or verify an OTP.
type OPAAdmission struct {
	query rego.PreparedEvalQuery
}

// NewOPAAdmission compiles module (DefaultAdmissionPolicy when empty) and prepares the deny_reason query.
func NewOPAAdmission(ctx context.Context, module string) (*OPAAdmission, error) {
	if module == "" {
		module = DefaultAdmissionPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"admission.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile admission policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(admissionQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare admission policy: %w", err)
	}
	return &OPAAdmission{query: q}, nil
}

// Evaluate runs the policy for account, which may be nil when the identifier did not resolve.
func (e *OPAAdmission) Evaluate(ctx context.Context, account *accountdomain.Account) (Decision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(account)))
	if err != nil {
		return Decision{}, fmt.Errorf("eval admission policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("admission policy returned no result")
	}
	reason, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return Decision{}, fmt.Errorf("admission policy returned %T, want string", rs[0].Expressions[0].Value)
	}
	return Decision{Allowed: reason == "", Reason: reason}, nil
}

// HealthCheck verifies the prepared policy evaluates for an active account. Does not touch the database.
func (e *OPAAdmission) HealthCheck(ctx context.Context) error {
	d, err := e.Evaluate(ctx, &accountdomain.Account{ID: "health", StatusCode: accountdomain.StatusActive})
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("admission policy denies an active account: %s", d.Reason)
	}
	return nil
}

func buildInput(account *accountdomain.Account) map[string]interface{} {
	input := map[string]interface{}{
		"found":         account != nil,
		"active_status": accountdomain.StatusActive,
		"account":       nil,
	}
	if account != nil {
		input["account"] = map[string]interface{}{
			"id":             account.ID,
			"status_code":    account.StatusCode,
			"status_name":    account.StatusName,
			"is_deleted":     account.IsDeleted,
			"is_deactivated": account.IsDeactivated,
		}
	}
	return input
}

// Err maps a denied decision to the account sentinel errors. It returns nil when d is allowed.
// Unknown reasons from a custom policy map to ErrAccountNotActive.
func (d Decision) Err(account *accountdomain.Account) error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonNotFound:
		return accountdomain.ErrAccountNotFound
	case ReasonDeleted:
		return accountdomain.ErrAccountDeleted
	case ReasonDeactivated:
		return accountdomain.ErrAccountDeactivated
	default:
		status := ""
		if account != nil {
			status = account.StatusName
		}
		return &accountdomain.NotActiveError{Status: status}
	}
}
