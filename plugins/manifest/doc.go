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

/*
Package manifest defines the declarative, versioned schema for Smarter
plugins: the manifest document that account holders apply to register a
static, sql, or api plugin, and the validation rules that bind a manifest to
its runtime execution class.

# Manifest format

A manifest is YAML (or JSON) with a Kubernetes-style top level:

	apiVersion: smarter.sh/v1
	kind: StaticPlugin
	metadata:
	  name: everlasting-gobstopper
	  pluginClass: static
	  version: 0.1.0
	  tags: [candy, sales]
	spec:
	  selector:
	    directive: searchTerms
	    searchTerms: [gobstopper, everlasting]
	  prompt:
	    systemRole: You are a Willy Wonka sales assistant.
	    model: gpt-4
	    temperature: 0.5
	    maxTokens: 256
	  data:
	    description: Product fact sheet for the Everlasting Gobstopper.
	    staticData:
	      sales:
	        price: "$1.00"

The kind-specific payload rules are enforced at validation time: a static
plugin must carry staticData and nothing else; a sql plugin must carry
connectionRef and sqlQuery; an api plugin must carry connectionRef and
endpoint. A payload that does not match metadata.pluginClass is a
ConfigurationError, never silently ignored.

A persisted plugin round-trips with a read-only status block (id, account
number, username, created/modified timestamps).
*/
package manifest
