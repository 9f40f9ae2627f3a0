package source

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschenken/usdaCoding/core"
)

func TestPrepare(t *testing.T) {
	raw := "fdc_id,description,data_type,nutrients,brand_owner\n" +
		"167512,\"Pillsbury Golden Layer Buttermilk Biscuits\",branded_food,\"[{\"\"id\"\":1}]\",Pillsbury\n" +
		"167513,Apple,sr_legacy_food,[],\n"

	var out bytes.Buffer
	n, err := Prepare(context.Background(), strings.NewReader(raw), &out, DefaultPrepareConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	src, err := NewCSVSource(&out)
	require.NoError(t, err)
	chunk, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, chunk.Len())

	biscuits := chunk.Records[0]
	assert.Equal(t, core.ID(167512), biscuits.ID)
	assert.Equal(t, "Pillsbury", biscuits.Content["brand_owner"])
	assert.NotContains(t, biscuits.Content, "nutrients")
	assert.NotContains(t, biscuits.Content, "fdc_id")
	assert.Empty(t, biscuits.Metadata)

	apple := chunk.Records[1]
	assert.Equal(t, core.ID(167513), apple.ID)
	assert.NotContains(t, apple.Content, "brand_owner", "blank columns are omitted")
	assert.Equal(t, "Apple", apple.Content["description"])
}

func TestPrepare_NumbersStayNumeric(t *testing.T) {
	raw := "fdc_id,kcal,zip\n1,52.5,01234\n"

	var out bytes.Buffer
	_, err := Prepare(context.Background(), strings.NewReader(raw), &out, DefaultPrepareConfig())
	require.NoError(t, err)

	src, err := NewCSVSource(&out)
	require.NoError(t, err)
	chunk, err := src.Next(context.Background())
	require.NoError(t, err)

	content := chunk.Records[0].Content
	assert.Equal(t, json.Number("52.5"), content["kcal"])
	assert.Equal(t, "01234", content["zip"])
}

func TestPrepare_DerivesMissingIDs(t *testing.T) {
	raw := "fdc_id,description\n,Apple\n,Apple\n3.0,Pear\n"

	var out bytes.Buffer
	n, err := Prepare(context.Background(), strings.NewReader(raw), &out, DefaultPrepareConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	src, err := NewCSVSource(&out)
	require.NoError(t, err)
	chunk, err := src.Next(context.Background())
	require.NoError(t, err)

	expected := core.IDFromContent(`{"description":"Apple"}`)
	assert.Equal(t, expected, chunk.Records[0].ID)
	assert.Equal(t, chunk.Records[0].ID, chunk.Records[1].ID, "identical content derives identical ids")
	assert.Equal(t, core.ID(3), chunk.Records[2].ID)
}

func TestPrepare_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	_, err := Prepare(context.Background(), strings.NewReader(""), &out, DefaultPrepareConfig())
	assert.ErrorIs(t, err, ErrMissingColumn)
}
