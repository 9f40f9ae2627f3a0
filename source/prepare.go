package source

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mschenken/usdaCoding/core"
)

// PrepareConfig controls how a raw export is converted into a prepared file.
type PrepareConfig struct {
	// IDColumn holds the record identifier. Rows without a usable value get
	// an id derived from their content.
	IDColumn string

	// Drop lists columns excluded from content entirely.
	Drop []string

	Logger *slog.Logger
}

// DefaultPrepareConfig returns the settings for the merged USDA foods export.
func DefaultPrepareConfig() PrepareConfig {
	return PrepareConfig{
		IDColumn: "fdc_id",
		Drop:     []string{"nutrients"},
	}
}

// Prepare rewrites a raw CSV export from r into the prepared id,content,metadata
// layout on w. Every remaining non-empty column becomes a content field;
// values that parse as numbers are kept as JSON numbers. Metadata is always an
// empty object. It returns the number of rows written.
func Prepare(ctx context.Context, r io.Reader, w io.Writer, cfg PrepareConfig) (int, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "prepare")

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return 0, fmt.Errorf("read header: %w", err)
	}

	dropped := make(map[string]bool, len(cfg.Drop)+2)
	for _, name := range cfg.Drop {
		dropped[name] = true
	}
	// An existing metadata column is replaced, not merged into content.
	dropped[columnMetadata] = true

	idCol := -1
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		if header[i] == cfg.IDColumn {
			idCol = i
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{columnID, columnContent, columnMetadata}); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	written, derived := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := written + 2
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.StartLine
			}
			return written, &RowError{Line: line, Err: err}
		}

		content := make(map[string]any, len(row))
		for i, value := range row {
			name := header[i]
			if i == idCol || dropped[name] || value == "" {
				continue
			}
			content[name] = fieldValue(value)
		}

		data, err := json.Marshal(content)
		if err != nil {
			return written, fmt.Errorf("encode content: %w", err)
		}

		var id core.ID
		if idCol >= 0 {
			if parsed, perr := parseID(row[idCol]); perr == nil {
				id = parsed
			} else {
				id = core.IDFromContent(string(data))
				derived++
			}
		} else {
			id = core.IDFromContent(string(data))
			derived++
		}

		if err := writer.Write([]string{strconv.FormatUint(uint64(id), 10), string(data), "{}"}); err != nil {
			return written, fmt.Errorf("write row: %w", err)
		}
		written++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return written, fmt.Errorf("flush: %w", err)
	}

	logger.Info("prepared records", "rows", written, "derived_ids", derived)
	return written, nil
}

// parseID accepts integer ids, including the "123.0" form spreadsheet tools
// emit for integer columns containing blanks.
func parseID(raw string) (core.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty id")
	}
	raw = strings.TrimSuffix(raw, ".0")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return core.ID(id), nil
}

func fieldValue(raw string) any {
	if _, err := strconv.ParseFloat(raw, 64); err == nil && json.Valid([]byte(raw)) {
		return json.Number(raw)
	}
	return raw
}
