// Copyright 2025 Poiesic Systems
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


package ai

import "errors"

var (
	// ErrInvalidConfig prefixes configuration validation failures.
	ErrInvalidConfig = errors.New("ai config")

	// ErrMalformedResponse is returned when a provider response cannot be mapped back to its inputs.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrEmptyInput is returned when asked to embed an empty string.
	ErrEmptyInput = errors.New("empty embedding input")

	// ErrProviderUnavailable wraps failures of the probe request.
	ErrProviderUnavailable = errors.New("provider unavailable")
)
