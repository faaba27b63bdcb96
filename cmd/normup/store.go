package main

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/kintsdev/normup"
	"github.com/kintsdev/normup/dynamostore"
	"github.com/kintsdev/normup/pgxstore"
	"github.com/kintsdev/normup/sqlstore"
	"github.com/pkg/errors"
)

// openStore picks the storage engine named by NORMUP_DIALECT
func openStore(ctx context.Context) (normup.QueryInterface, error) {
	l := normup.NewZapLogger(logger)
	switch strings.ToLower(cfg.Dialect) {
	case "", "pgx":
		return pgxstore.New(ctx, cfg, pgxstore.WithLogger(l))
	case "dynamodb", "dynamo":
		ac, err := awsConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return dynamostore.NewFromConfig(ac, cfg.Endpoint, dynamostore.WithLogger(l)), nil
	}
	if _, err := sqlstore.ParseDialect(cfg.Dialect); err != nil {
		return nil, errors.Wrapf(err, "NORMUP_DIALECT")
	}
	return sqlstore.Open(ctx, cfg, sqlstore.WithLogger(l))
}

// awsConfig resolves region and credentials through the SDK's default chain
// (environment, shared profiles, SSO, instance roles). A configured region
// wins over the profile region.
func awsConfig(ctx context.Context, c *normup.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	ac, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "load aws config")
	}
	return ac, nil
}
