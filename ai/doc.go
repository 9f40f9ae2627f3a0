// Copyright 2026 The usdaCoding Authors
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


// Package ai provides abstractions for the embedding services used to annotate records.
//
// The core pipeline depends only on the Embedder interface defined here, so
// the remote service can be swapped without touching chunking, batching or
// checkpointing logic.
//
// # Implementation Packages
//
//   - ai/gemini: Google Generative Language batchEmbedContents over HTTP
//   - ai/openai: OpenAI-compatible embedding APIs (OpenAI, Ollama, vLLM) via langchaingo
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (gemini.NewEmbedder, openai.NewEmbedder) return the
// ai.Embedder interface. Test utility constructors (mock.NewMockEmbedder)
// return concrete types so tests can inject behavior and inspect call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(
//	    ai.WithProvider(ai.ProviderGemini),
//	    ai.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	)
//	embedder, err := gemini.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vectors, err := embedder.EmbedTexts(ctx, []string{`{"description":"Apple"}`})
package ai
