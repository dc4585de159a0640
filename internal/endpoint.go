package internal

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
)

var ErrNoEndpoint = errors.New("mediaconvert returned no endpoints")

// EndpointDescriber is the part of the MediaConvert client used for endpoint
// discovery.
type EndpointDescriber interface {
	DescribeEndpoints(ctx context.Context, params *mediaconvert.DescribeEndpointsInput, optFns ...func(*mediaconvert.Options)) (*mediaconvert.DescribeEndpointsOutput, error)
}

// EndpointResolver looks up the account specific MediaConvert endpoint once
// and reuses it for the life of the process. Concurrent callers that find
// the cache empty may each call DescribeEndpoints; the account endpoint
// never changes, so whichever result is stored last is equivalent.
type EndpointResolver struct {
	api    EndpointDescriber
	cached atomic.Pointer[string]
}

// NewEndpointResolver returns a resolver backed by api. A non-empty explicit
// endpoint is returned as-is and discovery never runs.
func NewEndpointResolver(api EndpointDescriber, explicit string) *EndpointResolver {
	r := &EndpointResolver{api: api}
	if explicit != "" {
		r.cached.Store(&explicit)
	}
	return r
}

// Resolve returns the cached endpoint, discovering it on first use. Failed
// lookups are not cached.
func (r *EndpointResolver) Resolve(ctx context.Context) (string, error) {
	if url := r.cached.Load(); url != nil {
		return *url, nil
	}

	out, err := r.api.DescribeEndpoints(ctx, &mediaconvert.DescribeEndpointsInput{MaxResults: aws.Int32(1)})
	if err != nil {
		return "", fmt.Errorf("failed to describe mediaconvert endpoints: %w", err)
	}
	if len(out.Endpoints) == 0 || aws.ToString(out.Endpoints[0].Url) == "" {
		return "", ErrNoEndpoint
	}

	url := aws.ToString(out.Endpoints[0].Url)
	r.cached.Store(&url)
	return url, nil
}
