package basic

import (
	"context"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
)

// Validator is a minimal interface for something that can validate an
// HTTP Basic Authorization header value against a resource's shared
// secret.
type Validator interface {
	Validate(ctx context.Context, resource *resources.Resource, authorization string) bool
}
