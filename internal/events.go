package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

var ErrUnexpectedEvent = errors.New("unexpected event")

const (
	MediaConvertEventSource     = "aws.mediaconvert"
	MediaConvertEventDetailType = "MediaConvert Job State Change"
)

// JobStateChange is the detail of a MediaConvert job state change event.
// Only the fields the pipeline reads are declared.
type JobStateChange struct {
	JobID              string              `json:"jobId"`
	Status             string              `json:"status"`
	Queue              string              `json:"queue,omitempty"`
	UserMetadata       map[string]string   `json:"userMetadata,omitempty"`
	OutputGroupDetails []OutputGroupDetail `json:"outputGroupDetails,omitempty"`
	ErrorCode          int                 `json:"errorCode,omitempty"`
	ErrorMessage       string              `json:"errorMessage,omitempty"`
}

type OutputGroupDetail struct {
	Type              string   `json:"type"`
	PlaylistFilePaths []string `json:"playlistFilePaths,omitempty"`
}

// Metadata returns the job metadata echoed back from submission. ok is false
// when the output prefix is absent.
func (c *JobStateChange) Metadata() (JobMetadata, bool) {
	prefix, ok := c.UserMetadata[MetadataOutputPrefix]
	if !ok || prefix == "" {
		return JobMetadata{}, false
	}
	return JobMetadata{InputKey: c.UserMetadata[MetadataInputKey], OutputPrefix: prefix}, true
}

// HLSPlaylistPaths returns the master playlist locations MediaConvert
// reported for HLS output groups.
func (c *JobStateChange) HLSPlaylistPaths() []string {
	var paths []string
	for _, g := range c.OutputGroupDetails {
		if g.Type == "HLS_GROUP" {
			paths = append(paths, g.PlaylistFilePaths...)
		}
	}
	return paths
}

// JobStateChangeFromEvent extracts the MediaConvert detail from an
// EventBridge event.
func JobStateChangeFromEvent(ev events.CloudWatchEvent) (*JobStateChange, error) {
	if ev.Source != MediaConvertEventSource || ev.DetailType != MediaConvertEventDetailType {
		return nil, fmt.Errorf("%w: source %q detail-type %q", ErrUnexpectedEvent, ev.Source, ev.DetailType)
	}
	var detail JobStateChange
	if err := json.Unmarshal(ev.Detail, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode job state change: %w", err)
	}
	return &detail, nil
}

// playlistMatches reports whether an s3:// playlist path points at key.
func playlistMatches(playlistPath, key string) bool {
	rest, ok := strings.CutPrefix(playlistPath, "s3://")
	if !ok {
		return false
	}
	_, objectKey, ok := strings.Cut(rest, "/")
	return ok && objectKey == key
}
