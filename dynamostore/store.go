// Package dynamostore is the DynamoDB storage engine for normup. An upsert is
// a single UpdateItem keyed by the conflict columns; insert-only columns are
// written with if_not_exists so an existing item keeps them.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/kintsdev/normup"
)

// Client is the subset of the DynamoDB API the store needs. It is satisfied
// by *dynamodb.Client and by test doubles.
type Client interface {
	UpdateItem(ctx context.Context, params *ddb.UpdateItemInput, optFns ...func(*ddb.Options)) (*ddb.UpdateItemOutput, error)
}

// Store implements normup.QueryInterface over DynamoDB
type Store struct {
	client Client
	prefix string
	logger normup.Logger
}

// Option configures a Store
type Option func(*Store)

func WithLogger(l normup.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTablePrefix prepends prefix to every model table name
func WithTablePrefix(prefix string) Option { return func(s *Store) { s.prefix = prefix } }

// New wraps a DynamoDB client
func New(client Client, opts ...Option) *Store {
	s := &Store{client: client, logger: normup.NoopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig builds a client from an aws.Config. A non-empty endpoint
// points the client at e.g. dynamodb-local.
func NewFromConfig(cfg aws.Config, endpoint string, opts ...Option) *Store {
	client := ddb.NewFromConfig(cfg, func(o *ddb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, opts...)
}

func (s *Store) Capabilities() normup.Capabilities {
	return normup.Capabilities{Upserts: true, Returning: false, ReportsCreated: true}
}

// Upsert issues one UpdateItem with ReturnValues ALL_OLD. An empty old image
// means the item was created.
func (s *Store) Upsert(ctx context.Context, model normup.ModelDescriptor, insert, update *normup.FieldMap) (normup.Row, bool, error) {
	input, err := s.buildInput(model, insert, update)
	if err != nil {
		return nil, false, err
	}
	s.logger.Debug("upsert",
		normup.Field{Key: "table", Value: aws.ToString(input.TableName)},
		normup.Field{Key: "expression", Value: aws.ToString(input.UpdateExpression)},
	)
	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return nil, false, wrapError(err)
	}
	created := len(out.Attributes) == 0
	row := normup.Row{}
	if !created {
		var old map[string]any
		if err := attributevalue.UnmarshalMap(out.Attributes, &old); err != nil {
			return nil, false, &normup.ORMError{Code: normup.ErrCodeInvalidCast, Message: err.Error(), Internal: err}
		}
		for k, v := range old {
			row[k] = v
		}
	}
	insert.Range(func(c string, v any) bool {
		if _, ok := row[c]; !ok {
			row[c] = v
		}
		return true
	})
	if !created {
		update.Range(func(c string, v any) bool { row[c] = v; return true })
	}
	return row, created, nil
}

func (s *Store) buildInput(model normup.ModelDescriptor, insert, update *normup.FieldMap) (*ddb.UpdateItemInput, error) {
	if len(model.ConflictColumns) == 0 {
		return nil, &normup.ORMError{Code: normup.ErrCodeSchema, Message: "upsert requires key attributes"}
	}
	key := map[string]types.AttributeValue{}
	isKey := map[string]bool{}
	for _, c := range model.ConflictColumns {
		v, ok := insert.Get(c)
		if !ok {
			return nil, &normup.ORMError{Code: normup.ErrCodeConstraint, Message: fmt.Sprintf("key attribute %q missing from payload", c)}
		}
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, &normup.ORMError{Code: normup.ErrCodeInvalidCast, Message: err.Error(), Internal: err}
		}
		key[c] = av
		isKey[c] = true
	}

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var sets []string
	add := func(col string, v any, onlyIfAbsent bool) error {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return &normup.ORMError{Code: normup.ErrCodeInvalidCast, Message: err.Error(), Internal: err}
		}
		i := strconv.Itoa(len(sets))
		names["#n"+i] = col
		values[":v"+i] = av
		if onlyIfAbsent {
			sets = append(sets, "#n"+i+" = if_not_exists(#n"+i+", :v"+i+")")
		} else {
			sets = append(sets, "#n"+i+" = :v"+i)
		}
		return nil
	}
	var err error
	insert.Range(func(c string, v any) bool {
		if isKey[c] {
			return true
		}
		if uv, ok := update.Get(c); ok {
			err = add(c, uv, false)
		} else {
			err = add(c, v, true)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	update.Range(func(c string, v any) bool {
		if isKey[c] || insert.Has(c) {
			return true
		}
		err = add(c, v, false)
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	input := &ddb.UpdateItemInput{
		TableName:    aws.String(s.prefix + model.Table),
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	}
	if len(sets) > 0 {
		input.UpdateExpression = aws.String("SET " + strings.Join(sets, ", "))
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}
	return input, nil
}

// wrapError labels known DynamoDB and transport failures. Anything else is
// returned as is.
func wrapError(err error) error {
	var (
		condErr     *types.ConditionalCheckFailedException
		throughput  *types.ProvisionedThroughputExceededException
		txConflict  *types.TransactionConflictException
		notFound    *types.ResourceNotFoundException
		sizeErr     *types.ItemCollectionSizeLimitExceededException
		requestSize *types.RequestLimitExceeded
		sendErr     *smithyhttp.RequestSendError
		netErr      net.Error
	)
	var code normup.ErrorCode
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = normup.ErrCodeTransaction
	case errors.As(err, &condErr):
		code = normup.ErrCodeConstraint
	case errors.As(err, &throughput), errors.As(err, &txConflict), errors.As(err, &requestSize):
		code = normup.ErrCodeTransaction
	case errors.As(err, &notFound):
		code = normup.ErrCodeNotFound
	case errors.As(err, &sizeErr):
		code = normup.ErrCodeStringTooLong
	case errors.As(err, &sendErr), errors.As(err, &netErr):
		code = normup.ErrCodeConnection
	default:
		return err
	}
	return &normup.ORMError{Code: code, Message: err.Error(), Internal: err}
}
