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


package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Config holds configuration for a pipeline run.
type Config struct {
	// Name labels the run in logs.
	Name string

	// BatchSize is the number of records per embedding request and upsert.
	BatchSize int

	// Concurrency is the number of batches of one chunk processed at once.
	Concurrency int

	// ReportInterval is how often to report progress (number of records).
	ReportInterval int

	// ChunkTimeout bounds the processing of a single chunk. Zero disables it.
	ChunkTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:           "usda",
		BatchSize:      100,
		Concurrency:    1,
		ReportInterval: 1000,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than 0, got %d", c.BatchSize)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be greater than 0, got %d", c.Concurrency)
	}
	if c.ReportInterval <= 0 {
		return errors.New("report interval must be greater than 0")
	}
	if c.ChunkTimeout < 0 {
		return errors.New("chunk timeout must not be negative")
	}
	return nil
}
