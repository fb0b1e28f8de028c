package processors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"meshgate/internal/core"
	"meshgate/internal/core/engine"
)

func restRoute(table string) *engine.RouteConfig {
	return &engine.RouteConfig{Type: engine.RouteTypeREST, TargetURL: "https://db.internal", TableName: table}
}

func TestTransformInjectsTableName(t *testing.T) {
	bodies := []string{
		`{"id":1}`,
		`{"id":1,"table_name":"client_choice"}`,
		`{"table_name":null}`,
		`{}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			out := TransformBody([]byte(body), restRoute("orders"), nil)
			require.True(t, gjson.ValidBytes(out))
			assert.Equal(t, "orders", gjson.GetBytes(out, "table_name").String())
		})
	}
}

func TestTransformOverwritesDuplicateTableName(t *testing.T) {
	out := TransformBody([]byte(`{"table_name":"a","x":1,"table_name":"evil"}`), restRoute("orders"), nil)

	occurrences := 0
	gjson.ParseBytes(out).ForEach(func(key, _ gjson.Result) bool {
		if key.String() == "table_name" {
			occurrences++
		}
		return true
	})
	assert.Equal(t, 1, occurrences)

	// encoding/json keeps the last duplicate, so it must see the route's value too
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "orders", decoded["table_name"])
	assert.Equal(t, float64(1), decoded["x"])
}

func TestTransformStripsClientTableName(t *testing.T) {
	bodies := []string{
		`{"id":1,"table_name":"secrets"}`,
		`{"table_name":"a","x":{"table_name":"nested"},"table_name":"b"}`,
		`{"id":2}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			out := TransformBody([]byte(body), restRoute(""), nil)
			require.True(t, gjson.ValidBytes(out))
			assert.False(t, gjson.GetBytes(out, "table_name").Exists())
		})
	}

	out := TransformBody([]byte(`{"x":{"table_name":"nested"},"table_name":"top"}`), restRoute(""), nil)
	assert.Equal(t, "nested", gjson.GetBytes(out, "x.table_name").String(), "only the top-level field is stripped")
}

func TestTransformPassThrough(t *testing.T) {
	testCases := map[string]string{
		"empty":      "",
		"whitespace": "  \n\t ",
		"array":      `[{"table_name":"x"}]`,
		"scalar":     `42`,
	}
	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			out := TransformBody([]byte(body), restRoute("orders"), nil)
			assert.Equal(t, body, string(out))
		})
	}
}

func TestTransformInvalidJSONLogsWarning(t *testing.T) {
	obsCore, observed := observer.New(zap.WarnLevel)
	raw := []byte(`{"id": 1,`)

	out := TransformBody(raw, restRoute("orders"), zap.New(obsCore))

	assert.Equal(t, raw, out)
	require.Equal(t, 1, observed.Len())
	assert.Equal(t, zap.WarnLevel, observed.All()[0].Level)
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	raw := []byte(`{"id":1,"table_name":"client"}`)
	orig := string(raw)

	TransformBody(raw, restRoute("orders"), nil)
	TransformBody(raw, restRoute(""), nil)

	assert.Equal(t, orig, string(raw))
}

func TestTableNameProcessor(t *testing.T) {
	ctx := core.NewGatewayContext(context.Background(), nil)
	ctx.Route = restRoute("orders")

	p := NewTableName()
	out, err := p.OnRequest(ctx, []byte(`{"id":1}`))
	require.NoError(t, err)
	assert.Equal(t, "orders", gjson.GetBytes(out, "table_name").String())
	assert.NoError(t, p.OnResponse(ctx, nil))
	assert.Equal(t, "table-name", p.Name())
}
