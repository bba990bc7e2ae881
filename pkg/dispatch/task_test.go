package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/taskgate/pkg/params"
	"github.com/harun/taskgate/pkg/taskerr"
)

func TestTaskUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Kind
	}{
		{"explicit kind", `{"kind":"tool","tool":"scrape_website"}`, KindTool},
		{"legacy model flag", `{"is_model_task":true,"model_name":"gpt-4o-mini","prompt":"hi"}`, KindModel},
		{"legacy tool flag", `{"is_model_task":false,"tool":"scrape_website"}`, KindTool},
		{"inferred tool", `{"tool":"scrape_website"}`, KindTool},
		{"inferred model", `{"model_name":"gpt-4o-mini"}`, KindModel},
		{"no kind", `{"prompt":"hi"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var task Task
			require.NoError(t, json.Unmarshal([]byte(tt.json), &task))
			assert.Equal(t, tt.want, task.Kind)
		})
	}
}

func TestTaskUnmarshalBatch(t *testing.T) {
	raw := `[
		{"id": "scrape", "tool": "scrape_website", "params": {"url": "https://example.com", "max_depth": 2}},
		{"is_model_task": true, "model_name": "gpt-4o-mini", "prompt": "Summarize", "query": "What's new?",
		 "needs_embedding": true, "text": ["Visit https://x.io now"], "min_length": 3}
	]`

	var tasks []Task
	require.NoError(t, json.Unmarshal([]byte(raw), &tasks))
	require.Len(t, tasks, 2)

	assert.Equal(t, "scrape", tasks[0].ID)
	assert.Equal(t, "scrape_website", tasks[0].ToolName)
	depth, ok := tasks[0].Params.Get("max_depth")
	require.True(t, ok)
	assert.Equal(t, params.Int(2), depth)

	assert.Equal(t, KindModel, tasks[1].Kind)
	assert.True(t, tasks[1].NeedsEmbedding)
	assert.Equal(t, 3, tasks[1].MinLength)
	assert.True(t, tasks[1].Params.IsNull())
}

func TestTaskUnmarshalText(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []string
	}{
		{"single string", `{"model_name":"m","text":"Hello 5 world"}`, []string{"Hello 5 world"}},
		{"list", `{"model_name":"m","text":["a","b"]}`, []string{"a", "b"}},
		{"null", `{"model_name":"m","text":null}`, nil},
		{"absent", `{"model_name":"m"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var task Task
			require.NoError(t, json.Unmarshal([]byte(tt.json), &task))
			assert.Equal(t, tt.want, task.Text)
		})
	}

	t.Run("batch mixing both forms", func(t *testing.T) {
		raw := `[
			{"model_name": "m", "text": ["Visit https://x.io now"]},
			{"model_name": "m", "needs_embedding": true, "text": "Hello 5 world"}
		]`
		var tasks []Task
		require.NoError(t, json.Unmarshal([]byte(raw), &tasks))
		require.Len(t, tasks, 2)
		assert.Equal(t, []string{"hello world"}, Prepare(tasks[1]).Text)
	})

	t.Run("wrong shape", func(t *testing.T) {
		var task Task
		err := json.Unmarshal([]byte(`{"model_name":"m","text":42}`), &task)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "text must be a string or a list of strings")
	})
}

func TestTaskValidate(t *testing.T) {
	assert.NoError(t, ToolTask("x", params.Null()).Validate())
	assert.NoError(t, ModelTask("m", "p").Validate())

	for _, task := range []Task{{}, {Kind: KindTool}, {Kind: KindModel}, {Kind: "batch"}} {
		err := task.Validate()
		require.Error(t, err)
		assert.Equal(t, taskerr.KindValidation, taskerr.KindOf(err))
	}
}

func TestPrepare(t *testing.T) {
	task := Task{
		Kind:           KindModel,
		ModelName:      "gpt-4o-mini",
		Prompt:         "Keep   THIS!",
		Query:          "What's the weather like today?",
		NeedsEmbedding: true,
		Text:           []string{"Hello World! Visit https://example.com", "ok"},
		MinLength:      3,
		Params: params.MustFromAny(map[string]interface{}{
			"name":  "John Doe!!!",
			"count": "7",
		}),
	}

	prepared := Prepare(task)

	assert.Equal(t, "Keep   THIS!", prepared.Prompt)
	assert.Equal(t, "what s the weather like today", prepared.Query)
	assert.Equal(t, []string{"hello world! visit"}, prepared.Text)

	name, _ := prepared.Params.Get("name")
	assert.Equal(t, params.String("John Doe!!!"), name)
	count, _ := prepared.Params.Get("count")
	assert.Equal(t, params.Int(7), count)

	// The input task is not modified.
	assert.Equal(t, "What's the weather like today?", task.Query)
}

func TestOutcomeMarshal(t *testing.T) {
	tasks := []Task{{ID: "first"}, {}}
	outcomes := Outcomes(tasks, []taskerr.Envelope{
		taskerr.Success("done"),
		taskerr.Failure(taskerr.KindExecution, "boom"),
	})

	data, err := json.Marshal(outcomes)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id":"first","status":"success","result":"done"},
		{"status":"error","message":"boom"}
	]`, string(data))
}

func TestTaskLabel(t *testing.T) {
	assert.Equal(t, "scrape_website", ToolTask("scrape_website", params.Null()).Label())
	assert.Equal(t, "gpt-4o-mini", ModelTask("gpt-4o-mini", "").Label())

	task := ToolTask("scrape_website", params.Null())
	task.ID = "s1"
	assert.Equal(t, "s1(scrape_website)", task.Label())
}
