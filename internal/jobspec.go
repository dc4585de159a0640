package internal

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
)

// User metadata keys echoed back by MediaConvert in job state change events.
const (
	MetadataInputKey     = "inputKey"
	MetadataOutputPrefix = "outputPrefix"
)

const (
	hlsSegmentSeconds = 6
	audioSelectorName = "Audio Selector 1"
	audioBitrate      = 96_000
	audioSampleRate   = 48_000
)

// JobRequest describes one lesson transcode. OutputPrefix is always
// GenerateOutputPrefix(courseId, lessonId) for the uploaded lesson.
type JobRequest struct {
	InputBucket  string
	InputKey     string
	OutputBucket string
	OutputPrefix string
	RoleARN      string
	// QueueARN is optional. An empty value submits to the account's default queue.
	QueueARN string
	// Abr falls back to DefaultAbrConstraints when zero.
	Abr AbrConstraints
}

// JobMetadata is carried through MediaConvert as user metadata. It is the
// only link between a submitted job and its completion event.
type JobMetadata struct {
	InputKey     string `json:"inputKey"`
	OutputPrefix string `json:"outputPrefix"`
}

// UserMetadata returns the metadata map attached to the MediaConvert job.
func (m JobMetadata) UserMetadata() map[string]string {
	return map[string]string{
		MetadataInputKey:     m.InputKey,
		MetadataOutputPrefix: m.OutputPrefix,
	}
}

// BuildTranscodeJob assembles the MediaConvert job for req: a single S3
// input, one HLS group with automated ABR, and separate video-only and
// audio-only outputs. It has no side effects and equal requests produce
// equal jobs.
func BuildTranscodeJob(req JobRequest) *mediaconvert.CreateJobInput {
	abr := req.Abr
	if abr == (AbrConstraints{}) {
		abr = DefaultAbrConstraints
	}

	input := &mediaconvert.CreateJobInput{
		Role: aws.String(req.RoleARN),
		UserMetadata: JobMetadata{
			InputKey:     req.InputKey,
			OutputPrefix: req.OutputPrefix,
		}.UserMetadata(),
		Settings: &types.JobSettings{
			Inputs: []types.Input{
				{
					FileInput: aws.String("s3://" + req.InputBucket + "/" + req.InputKey),
					AudioSelectors: map[string]types.AudioSelector{
						audioSelectorName: {DefaultSelection: types.AudioDefaultSelectionDefault},
					},
					VideoSelector:  &types.VideoSelector{},
					TimecodeSource: types.InputTimecodeSourceZerobased,
				},
			},
			OutputGroups: []types.OutputGroup{hlsOutputGroup(req.OutputBucket, req.OutputPrefix, abr)},
		},
	}
	if req.QueueARN != "" {
		input.Queue = aws.String(req.QueueARN)
	}
	return input
}

func hlsOutputGroup(bucket, prefix string, abr AbrConstraints) types.OutputGroup {
	return types.OutputGroup{
		Name: aws.String("Apple HLS"),
		OutputGroupSettings: &types.OutputGroupSettings{
			Type: types.OutputGroupTypeHlsGroupSettings,
			HlsGroupSettings: &types.HlsGroupSettings{
				Destination:            aws.String("s3://" + bucket + "/" + prefix + "/"),
				SegmentLength:          aws.Int32(hlsSegmentSeconds),
				MinSegmentLength:       aws.Int32(0),
				DirectoryStructure:     types.HlsDirectoryStructureSingleDirectory,
				ManifestDurationFormat: types.HlsManifestDurationFormatInteger,
			},
		},
		AutomatedEncodingSettings: &types.AutomatedEncodingSettings{
			AbrSettings: &types.AutomatedAbrSettings{
				MaxRenditions: aws.Int32(int32(abr.MaxRenditions)),
				MinAbrBitrate: aws.Int32(int32(abr.MinBitrate)),
				MaxAbrBitrate: aws.Int32(int32(abr.MaxBitrate)),
			},
		},
		Outputs: []types.Output{videoOutput(), audioOutput()},
	}
}

func videoOutput() types.Output {
	return types.Output{
		NameModifier:      aws.String("_video"),
		ContainerSettings: &types.ContainerSettings{Container: types.ContainerTypeM3u8},
		OutputSettings:    &types.OutputSettings{HlsSettings: &types.HlsSettings{}},
		VideoDescription: &types.VideoDescription{
			CodecSettings: &types.VideoCodecSettings{
				Codec: types.VideoCodecH264,
				H264Settings: &types.H264Settings{
					RateControlMode:    types.H264RateControlModeQvbr,
					QualityTuningLevel: types.H264QualityTuningLevelMultiPassHq,
					SceneChangeDetect:  types.H264SceneChangeDetectTransitionDetection,
				},
			},
		},
	}
}

func audioOutput() types.Output {
	return types.Output{
		NameModifier:      aws.String("_audio"),
		ContainerSettings: &types.ContainerSettings{Container: types.ContainerTypeM3u8},
		OutputSettings: &types.OutputSettings{
			HlsSettings: &types.HlsSettings{AudioTrackType: types.HlsAudioTrackTypeAlternateAudioAutoSelectDefault},
		},
		AudioDescriptions: []types.AudioDescription{
			{
				AudioSourceName: aws.String(audioSelectorName),
				CodecSettings: &types.AudioCodecSettings{
					Codec: types.AudioCodecAac,
					AacSettings: &types.AacSettings{
						Bitrate:         aws.Int32(audioBitrate),
						CodingMode:      types.AacCodingModeCodingMode20,
						SampleRate:      aws.Int32(audioSampleRate),
						RateControlMode: types.AacRateControlModeCbr,
					},
				},
			},
		},
	}
}
