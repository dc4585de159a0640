package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
)

var ErrNoJobCreated = errors.New("mediaconvert returned no job")

// JobCreator is the part of the MediaConvert client used to submit jobs.
type JobCreator interface {
	CreateJob(ctx context.Context, params *mediaconvert.CreateJobInput, optFns ...func(*mediaconvert.Options)) (*mediaconvert.CreateJobOutput, error)
}

// JobSubmitter submits a built transcode job and returns the MediaConvert job id.
type JobSubmitter interface {
	Submit(ctx context.Context, job *mediaconvert.CreateJobInput) (string, error)
}

// MediaConvertSubmitter sends jobs to the account endpoint found by its resolver.
type MediaConvertSubmitter struct {
	api      JobCreator
	resolver *EndpointResolver
}

// NewMediaConvertSubmitter returns a submitter that creates jobs through api
// at the endpoint found by resolver.
func NewMediaConvertSubmitter(api JobCreator, resolver *EndpointResolver) *MediaConvertSubmitter {
	return &MediaConvertSubmitter{api: api, resolver: resolver}
}

// NewMediaConvertClient builds a MediaConvert client and a submitter whose
// endpoint resolver shares it. explicitEndpoint may be empty.
func NewMediaConvertClient(cfg aws.Config, explicitEndpoint string) *MediaConvertSubmitter {
	client := mediaconvert.NewFromConfig(cfg)
	return NewMediaConvertSubmitter(client, NewEndpointResolver(client, explicitEndpoint))
}

// Submit creates job and returns its MediaConvert job id. A response without
// a job id is an error so the upload is retried.
func (s *MediaConvertSubmitter) Submit(ctx context.Context, job *mediaconvert.CreateJobInput) (string, error) {
	endpoint, err := s.resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}

	out, err := s.api.CreateJob(ctx, job, func(o *mediaconvert.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create mediaconvert job: %w", err)
	}
	if out.Job == nil || aws.ToString(out.Job.Id) == "" {
		return "", ErrNoJobCreated
	}
	return aws.ToString(out.Job.Id), nil
}
