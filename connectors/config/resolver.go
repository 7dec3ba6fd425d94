// Copyright 2025 Smarter
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

package config

import (
	"context"
	"fmt"
	"strings"
)

// SecretResolver fetches a named secret as a flat key-value map. The ref is
// backend-specific: an ARN for AWS Secrets Manager, an env var prefix for
// the environment resolver.
type SecretResolver interface {
	GetSecret(ctx context.Context, ref string) (map[string]string, error)
}

// secretPrefix marks a credential value as a reference to be resolved
// rather than a literal. Two forms are accepted:
//
//	secret:<ref>        resolves to the secret's "value" entry
//	secret:<ref>#<key>  resolves to the named entry
const secretPrefix = "secret:"

// ResolveCredentials walks a credential map and replaces secret references
// with their resolved values. Literal values pass through untouched. The
// input map is not modified.
func ResolveCredentials(ctx context.Context, resolver SecretResolver, credentials map[string]string) (map[string]string, error) {
	if len(credentials) == 0 {
		return credentials, nil
	}

	resolved := make(map[string]string, len(credentials))
	for name, value := range credentials {
		if !strings.HasPrefix(value, secretPrefix) {
			resolved[name] = value
			continue
		}

		ref := strings.TrimPrefix(value, secretPrefix)
		field := "value"
		if idx := strings.LastIndex(ref, "#"); idx >= 0 {
			field = ref[idx+1:]
			ref = ref[:idx]
		}
		if ref == "" {
			return nil, fmt.Errorf("credential %q has an empty secret reference", name)
		}

		secret, err := resolver.GetSecret(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve credential %q: %w", name, err)
		}
		fieldValue, ok := secret[field]
		if !ok {
			return nil, fmt.Errorf("secret for credential %q has no field %q", name, field)
		}
		resolved[name] = fieldValue
	}

	return resolved, nil
}
