package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/peteski22/albumbridge/internal/config"
)

// SSMAPI defines the SSM operations used by the limits store.
type SSMAPI interface {
	// GetParameter retrieves a parameter from SSM.
	GetParameter(
		ctx context.Context,
		params *ssm.GetParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.GetParameterOutput, error)
}

// LimitsStore reads destination platform limits from a JSON-valued SSM parameter,
// e.g. {"max_album_size":5000,"max_name_length":255}. Fields that are absent keep
// their defaults.
type LimitsStore struct {
	// client is the SSM API client.
	client SSMAPI

	// defaults fill any limit the parameter leaves unset.
	defaults config.Limits

	// parameterName is the SSM parameter holding the limits.
	parameterName string
}

// NewLimitsStore creates a new SSM-backed limits store.
func NewLimitsStore(client SSMAPI, parameterName string, defaults config.Limits) (*LimitsStore, error) {
	if client == nil {
		return nil, errors.New("ssm client is required")
	}
	if parameterName == "" {
		return nil, errors.New("parameter name is required")
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default limits: %w", err)
	}

	return &LimitsStore{
		client:        client,
		defaults:      defaults,
		parameterName: parameterName,
	}, nil
}

// Limits returns the configured limits merged over the defaults.
func (s *LimitsStore) Limits(ctx context.Context) (config.Limits, error) {
	output, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(s.parameterName),
	})
	if err != nil {
		// Parameter not found is not an error - use the defaults.
		var notFoundErr *types.ParameterNotFound
		if errors.As(err, &notFoundErr) {
			return s.defaults, nil
		}
		return config.Limits{}, fmt.Errorf("getting parameter from SSM: %w", err)
	}

	if output.Parameter == nil || output.Parameter.Value == nil || *output.Parameter.Value == "" {
		return s.defaults, nil
	}

	var limits config.Limits
	if err := json.Unmarshal([]byte(*output.Parameter.Value), &limits); err != nil {
		return config.Limits{}, fmt.Errorf("parsing limits parameter: %w", err)
	}

	limits = limits.Merge(s.defaults)
	if err := limits.Validate(); err != nil {
		return config.Limits{}, fmt.Errorf("invalid limits parameter %s: %w", s.parameterName, err)
	}

	return limits, nil
}
