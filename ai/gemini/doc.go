// Package gemini provides an ai.Embedder backed by the Google Generative
// Language batchEmbedContents endpoint.
package gemini
