// Copyright 2026 The MemVault Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration.
type Config struct {
	Enabled bool
}

// Meter wraps the OpenTelemetry meter for this service.
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance. When disabled, instruments come from a
// no-op meter so call sites stay unconditional.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: otel.Meter("noop"),
		}, nil
	}

	meter := otel.Meter(serviceName)

	return &Meter{
		meter: meter,
	}, nil
}

// OAuth bundles the authorization-server instruments. A nil *OAuth is valid
// and records nothing, so tests can pass nil.
type OAuth struct {
	authorizeRequests metric.Int64Counter
	tokensIssued      metric.Int64Counter
	tokenFailures     metric.Int64Counter
	tokensRevoked     metric.Int64Counter
}

// NewOAuth registers the authorization-server instruments on the meter.
func (m *Meter) NewOAuth() (*OAuth, error) {
	authorize, err := m.meter.Int64Counter(
		"oauth.authorize.requests",
		metric.WithDescription("Authorization endpoint requests by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter oauth.authorize.requests: %w", err)
	}
	issued, err := m.meter.Int64Counter(
		"oauth.tokens.issued",
		metric.WithDescription("Tokens issued by grant type"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter oauth.tokens.issued: %w", err)
	}
	failures, err := m.meter.Int64Counter(
		"oauth.token.failures",
		metric.WithDescription("Token endpoint failures by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter oauth.token.failures: %w", err)
	}
	revoked, err := m.meter.Int64Counter(
		"oauth.tokens.revoked",
		metric.WithDescription("Tokens revoked"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter oauth.tokens.revoked: %w", err)
	}

	return &OAuth{
		authorizeRequests: authorize,
		tokensIssued:      issued,
		tokenFailures:     failures,
		tokensRevoked:     revoked,
	}, nil
}

// AuthorizeRequest counts one authorization request with its outcome
// (validated, rejected, consent_denied, code_issued).
func (o *OAuth) AuthorizeRequest(ctx context.Context, outcome string) {
	if o == nil {
		return
	}
	o.authorizeRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// TokenIssued counts one successful issuance for a grant type.
func (o *OAuth) TokenIssued(ctx context.Context, grantType string) {
	if o == nil {
		return
	}
	o.tokensIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("grant_type", grantType)))
}

// TokenFailure counts one token endpoint failure by protocol error code.
func (o *OAuth) TokenFailure(ctx context.Context, code string) {
	if o == nil {
		return
	}
	o.tokenFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("error", code)))
}

// TokenRevoked counts one revocation.
func (o *OAuth) TokenRevoked(ctx context.Context) {
	if o == nil {
		return
	}
	o.tokensRevoked.Add(ctx, 1)
}
