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

package registry

import (
	"fmt"

	"smarter/platform/connectors/base"
	"smarter/platform/connectors/http"
	"smarter/platform/connectors/mysql"
	"smarter/platform/connectors/postgres"
)

// DefaultFactory creates connections for the built-in connection types.
func DefaultFactory(connType string) (base.Connection, error) {
	switch connType {
	case "postgres":
		return postgres.New(), nil
	case "mysql":
		return mysql.New(), nil
	case "http":
		return http.New(), nil
	default:
		return nil, fmt.Errorf("unknown connection type %q", connType)
	}
}
