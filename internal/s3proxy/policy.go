package s3proxy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// accessPolicy gates object access with a Rego policy. The policy is
// evaluated with input {"method": ..., "path": ...} against
// data.s3public.allow.
type accessPolicy struct {
	query rego.PreparedEvalQuery
}

func loadAccessPolicy(ctx context.Context, path string) (*accessPolicy, error) {
	r := rego.New(
		rego.Load([]string{path}, nil),
		rego.Query("data.s3public.allow"),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy %q: %w", path, err)
	}

	return &accessPolicy{query: query}, nil
}

func (p *accessPolicy) Allow(ctx context.Context, method, path string) (bool, error) {
	results, err := p.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"method": method,
		"path":   path,
	}))
	if err != nil {
		return false, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy result is not a boolean")
	}
	return allowed, nil
}
