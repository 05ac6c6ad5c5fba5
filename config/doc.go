// Copyright 2025 Solenne Labs
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

// Package config loads the application configuration.
//
// Settings come from three layers, each overriding the previous one:
// built-in defaults, a YAML file, and environment variables. A missing
// config file is not an error; the defaults run a fully local setup
// against an Ollama-style endpoint. The assembled Config is what the
// top-level constructor consumes; individual components keep their own
// functional options and never read this package directly.
package config
