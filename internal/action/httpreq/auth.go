// Copyright 2025 Tom Barlow
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

package httpreq

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/tombee/reprise/pkg/errors"
)

// authenticator applies the auth block of an http_request step to the
// outgoing request. Token sources are cached per token endpoint and
// client ID so tokens are reused until they expire.
type authenticator struct {
	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

func newAuthenticator() *authenticator {
	return &authenticator{sources: make(map[string]oauth2.TokenSource)}
}

func (a *authenticator) apply(ctx context.Context, req *http.Request, body []byte, params map[string]any) error {
	authType, _ := params["type"].(string)
	switch authType {
	case "", "none":
		return nil
	case "bearer":
		return applyBearer(req, params)
	case "basic":
		return applyBasic(req, params)
	case "oauth2":
		return a.applyOAuth2(ctx, req, params)
	case "aws_sigv4":
		return applySigV4(ctx, req, body, params)
	default:
		return &errors.ValidationError{
			Field:      "auth.type",
			Message:    fmt.Sprintf("unknown auth type %q", authType),
			Suggestion: "Supported types: bearer, basic, oauth2, aws_sigv4",
		}
	}
}

func applyBearer(req *http.Request, params map[string]any) error {
	token, _ := params["token"].(string)
	if token == "" {
		return &errors.ValidationError{Field: "auth.token", Message: "token is required for bearer auth"}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func applyBasic(req *http.Request, params map[string]any) error {
	username, _ := params["username"].(string)
	password, _ := params["password"].(string)
	if username == "" {
		return &errors.ValidationError{Field: "auth.username", Message: "username is required for basic auth"}
	}
	req.SetBasicAuth(username, password)
	return nil
}

// applyOAuth2 obtains a client-credentials token and sets it as a
// bearer header. The token source handles refresh.
func (a *authenticator) applyOAuth2(ctx context.Context, req *http.Request, params map[string]any) error {
	clientID, _ := params["client_id"].(string)
	clientSecret, _ := params["client_secret"].(string)
	tokenURL, _ := params["token_url"].(string)
	if clientID == "" || clientSecret == "" || tokenURL == "" {
		return &errors.ValidationError{
			Field:      "auth",
			Message:    "oauth2 auth requires client_id, client_secret and token_url",
			Suggestion: "Keep the secret out of the workflow file with a {{ secrets.* }} template",
		}
	}

	var scopes []string
	if raw, ok := params["scopes"].([]any); ok {
		for _, s := range raw {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
	}

	token, err := a.tokenSource(ctx, clientID, clientSecret, tokenURL, scopes).Token()
	if err != nil {
		return fmt.Errorf("obtaining oauth2 token from %s: %w", tokenURL, err)
	}
	token.SetAuthHeader(req)
	return nil
}

func (a *authenticator) tokenSource(ctx context.Context, clientID, clientSecret, tokenURL string, scopes []string) oauth2.TokenSource {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := tokenURL + "\x00" + clientID
	if source, ok := a.sources[key]; ok {
		return source
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	// detached context: the source outlives the request that created it
	source := cfg.TokenSource(context.WithoutCancel(ctx))
	a.sources[key] = source
	return source
}

// applySigV4 signs the request with AWS Signature Version 4.
// Credentials come from the default chain; role_arn switches to
// assume-role credentials first.
func applySigV4(ctx context.Context, req *http.Request, body []byte, params map[string]any) error {
	region, _ := params["region"].(string)
	service, _ := params["service"].(string)
	if region == "" || service == "" {
		return &errors.ValidationError{
			Field:      "auth",
			Message:    "aws_sigv4 auth requires region and service",
			Suggestion: `For example region "ap-northeast-1" and service "execute-api"`,
		}
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}

	provider := awsCfg.Credentials
	if roleARN, _ := params["role_arn"].(string); roleARN != "" {
		provider = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), roleARN))
	}

	creds, err := provider.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieving AWS credentials: %w", err)
	}

	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	if err := v4.NewSigner().SignHTTP(ctx, creds, req, payloadHash, service, region, time.Now()); err != nil {
		return fmt.Errorf("signing request: %w", err)
	}
	return nil
}
