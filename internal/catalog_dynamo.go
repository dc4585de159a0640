package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the catalog uses.
type DynamoAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoCatalog stores lessons in a single table keyed by
// PK = COURSE#{courseId} and SK = LESSON#{lessonId}.
type DynamoCatalog struct {
	api   DynamoAPI
	table string
}

// NewDynamoCatalog returns a catalog backed by the DynamoDB table.
func NewDynamoCatalog(api DynamoAPI, table string) *DynamoCatalog {
	return &DynamoCatalog{api: api, table: table}
}

// LessonItemKey returns the primary key of a lesson item.
func LessonItemKey(courseID, lessonID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "COURSE#" + courseID},
		"SK": &types.AttributeValueMemberS{Value: "LESSON#" + lessonID},
	}
}

// SetManifestKey updates the lesson only if its item already exists.
func (c *DynamoCatalog) SetManifestKey(ctx context.Context, courseID, lessonID, manifestKey string, updatedAt time.Time) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.table),
		Key:                 LessonItemKey(courseID, lessonID),
		UpdateExpression:    aws.String("SET hlsManifestKey = :manifestKey, updatedAt = :updatedAt"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":manifestKey": &types.AttributeValueMemberS{Value: manifestKey},
			":updatedAt":   &types.AttributeValueMemberS{Value: updatedAt.UTC().Format(time.RFC3339)},
		},
	})
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return fmt.Errorf("%w: %s/%s", ErrLessonNotFound, courseID, lessonID)
	} else if err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}
	return nil
}

// GetLesson reads the lesson with a strongly consistent read.
func (c *DynamoCatalog) GetLesson(ctx context.Context, courseID, lessonID string) (*Lesson, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.table),
		Key:            LessonItemKey(courseID, lessonID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrLessonNotFound, courseID, lessonID)
	}

	lesson := &Lesson{
		CourseID:       courseID,
		LessonID:       lessonID,
		Title:          stringAttr(out.Item, "title"),
		HLSManifestKey: stringAttr(out.Item, "hlsManifestKey"),
	}
	if ts := stringAttr(out.Item, "updatedAt"); ts != "" {
		if lesson.UpdatedAt, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("failed to parse updatedAt %q: %w", ts, err)
		}
	}
	return lesson, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
