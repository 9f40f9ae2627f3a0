package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschenken/usdaCoding/core"
)

func preparedCSV(n int) string {
	var b strings.Builder
	b.WriteString("id,content,metadata\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,\"{\"\"description\"\":\"\"food %d\"\"}\",{}\n", i, i)
	}
	return b.String()
}

func TestCSVSource_ChunksPartitionInput(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader(preparedCSV(25)), WithChunkSize(10))
	require.NoError(t, err)

	ctx := context.Background()
	var sizes []int
	var ids []core.ID
	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, len(sizes), chunk.Index)
		sizes = append(sizes, chunk.Len())
		for _, r := range chunk.Records {
			ids = append(ids, r.ID)
		}
	}

	assert.Equal(t, []int{10, 10, 5}, sizes)
	require.Len(t, ids, 25)
	for i, id := range ids {
		assert.Equal(t, core.ID(i+1), id)
	}

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCSVSource_ExactMultipleHasNoEmptyChunk(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader(preparedCSV(20)), WithChunkSize(10))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		chunk, err := src.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, chunk.Len())
	}
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCSVSource_EmptyFile(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader("id,content,metadata\n"), WithChunkSize(10))
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestCSVSource_ParsesFields(t *testing.T) {
	input := "id,content,metadata\n" +
		"42,\"{\"\"description\"\":\"\"Apple\"\",\"\"kcal\"\":52}\",\"{\"\"source\"\":\"\"usda\"\"}\"\n" +
		"43,\"{\"\"description\"\":\"\"Pear\"\"}\",\n" +
		"44,\"{\"\"description\"\":\"\"Fig\"\"}\",{}\n"

	src, err := NewCSVSource(strings.NewReader(input))
	require.NoError(t, err)

	chunk, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, chunk.Len())

	apple := chunk.Records[0]
	assert.Equal(t, core.ID(42), apple.ID)
	assert.Equal(t, "Apple", apple.Content["description"])
	assert.Equal(t, "usda", apple.Metadata["source"])

	text, err := apple.Content.Text()
	require.NoError(t, err)
	assert.Equal(t, `{"description":"Apple","kcal":52}`, text)

	for _, r := range chunk.Records[1:] {
		assert.NotNil(t, r.Metadata)
		assert.Empty(t, r.Metadata)
	}
}

func TestCSVSource_NoMetadataColumn(t *testing.T) {
	input := "content,id\n\"{\"\"a\"\":1}\",7\n"

	src, err := NewCSVSource(strings.NewReader(input))
	require.NoError(t, err)

	chunk, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, chunk.Len())
	assert.Equal(t, core.ID(7), chunk.Records[0].ID)
	assert.NotNil(t, chunk.Records[0].Metadata)
}

func TestCSVSource_MissingColumns(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "no id", input: "content,metadata\n"},
		{name: "no content", input: "id,metadata\n"},
		{name: "empty file", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVSource(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMissingColumn)
		})
	}
}

func TestCSVSource_InvalidChunkSize(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader(preparedCSV(1)), WithChunkSize(0))
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestCSVSource_MalformedRowAbortsChunk(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		column string
	}{
		{name: "bad id", row: "abc,\"{}\",{}", column: "id"},
		{name: "bad content", row: "3,not-json,{}", column: "content"},
		{name: "content array", row: "3,\"[1,2]\",{}", column: "content"},
		{name: "empty content", row: "3,,{}", column: "content"},
		{name: "metadata not object", row: "3,\"{}\",\"[1]\"", column: "metadata"},
		{name: "field count", row: "3,\"{}\"", column: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "id,content,metadata\n" +
				"1,\"{\"\"a\"\":1}\",{}\n" +
				"2,\"{\"\"a\"\":2}\",{}\n" +
				tt.row + "\n"

			src, err := NewCSVSource(strings.NewReader(input), WithChunkSize(10))
			require.NoError(t, err)

			chunk, err := src.Next(context.Background())
			assert.Nil(t, chunk)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrMalformedRow)

			var rowErr *RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, tt.column, rowErr.Column)
			assert.Equal(t, 4, rowErr.Line)

			// The failure is sticky.
			_, err = src.Next(context.Background())
			assert.ErrorIs(t, err, core.ErrMalformedRow)
		})
	}
}

func TestCSVSource_Skip(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader(preparedCSV(35)), WithChunkSize(10))
	require.NoError(t, err)

	ctx := context.Background()
	skipped, err := src.Skip(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, 2, src.NextIndex())

	chunk, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, chunk.Index)
	assert.Equal(t, core.ID(21), chunk.Records[0].ID)
}

func TestCSVSource_SkipDoesNotDecodeContent(t *testing.T) {
	input := "id,content,metadata\n" +
		"1,not-json,{}\n" +
		"2,\"{\"\"a\"\":2}\",{}\n"

	src, err := NewCSVSource(strings.NewReader(input), WithChunkSize(1))
	require.NoError(t, err)

	skipped, err := src.Skip(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)

	chunk, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.ID(2), chunk.Records[0].ID)
}

func TestCSVSource_SkipPastEnd(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader(preparedCSV(15)), WithChunkSize(10))
	require.NoError(t, err)

	skipped, err := src.Skip(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestCSVSource_ContextCancelled(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader(preparedCSV(5)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
