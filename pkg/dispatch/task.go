package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/harun/taskgate/pkg/params"
	"github.com/harun/taskgate/pkg/preprocess"
	"github.com/harun/taskgate/pkg/taskerr"
)

// Kind distinguishes model tasks from tool tasks
type Kind string

const (
	KindModel Kind = "model"
	KindTool  Kind = "tool"
)

// Task is one unit of work in a batch
type Task struct {
	// ID is an optional caller label echoed in Outcome
	ID   string `json:"id,omitempty"`
	Kind Kind   `json:"kind"`

	// Tool tasks
	ToolName string       `json:"tool,omitempty"`
	Params   params.Value `json:"params"`

	// Model tasks
	ModelName string `json:"model_name,omitempty"`
	Prompt    string `json:"prompt,omitempty"`

	Query          string   `json:"query,omitempty"`
	Text           []string `json:"text,omitempty"`
	NeedsEmbedding bool     `json:"needs_embedding,omitempty"`
	// MinLength drops prepared texts shorter than this many characters
	MinLength int `json:"min_length,omitempty"`
}

// ToolTask builds a tool task
func ToolTask(tool string, p params.Value) Task {
	return Task{Kind: KindTool, ToolName: tool, Params: p}
}

// ModelTask builds a model task
func ModelTask(modelName, prompt string) Task {
	return Task{Kind: KindModel, ModelName: modelName, Prompt: prompt}
}

// UnmarshalJSON accepts the legacy is_model_task flag in place of kind, and
// text as either a single string or a list of strings
func (t *Task) UnmarshalJSON(data []byte) error {
	type taskAlias Task
	var raw struct {
		taskAlias
		IsModelTask *bool           `json:"is_model_task"`
		Text        json.RawMessage `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = Task(raw.taskAlias)
	text, err := decodeText(raw.Text)
	if err != nil {
		return err
	}
	t.Text = text

	if t.Kind != "" {
		return nil
	}

	switch {
	case raw.IsModelTask != nil && *raw.IsModelTask:
		t.Kind = KindModel
	case raw.IsModelTask != nil:
		t.Kind = KindTool
	case t.ToolName != "":
		t.Kind = KindTool
	case t.ModelName != "":
		t.Kind = KindModel
	}
	return nil
}

func decodeText(data json.RawMessage) ([]string, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		return []string{single}, nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("text must be a string or a list of strings: %w", err)
	}
	return list, nil
}

// Validate checks the fields required by the task kind
func (t Task) Validate() error {
	switch t.Kind {
	case KindTool:
		if t.ToolName == "" {
			return taskerr.Validation("dispatch", "tool task has no tool name")
		}
	case KindModel:
		if t.ModelName == "" {
			return taskerr.Validation("dispatch", "model task has no model name")
		}
	case "":
		return taskerr.Validation("dispatch", "task has no kind")
	default:
		return taskerr.Validation("dispatch", "unknown task kind %q", t.Kind)
	}
	return nil
}

// Prepare runs the preprocessing pipeline over a task. The prompt of a model
// task is passed through unchanged.
func Prepare(t Task) Task {
	if t.Query != "" {
		t.Query = preprocess.CleanQuery(t.Query)
	}
	if t.NeedsEmbedding && len(t.Text) > 0 {
		t.Text = preprocess.PreprocessForEmbedding(t.Text...)
	}
	if t.MinLength > 0 && len(t.Text) > 0 {
		t.Text = preprocess.FilterTexts(t.Text, t.MinLength)
	}
	if !t.Params.IsNull() {
		t.Params = preprocess.ValidateParameters(t.Params)
	}
	return t
}

// Label names the task in logs and errors
func (t Task) Label() string {
	name := t.ToolName
	if t.Kind == KindModel {
		name = t.ModelName
	}
	if t.ID != "" {
		return fmt.Sprintf("%s(%s)", t.ID, name)
	}
	return name
}

// Outcome pairs an envelope with the ID of the task that produced it
type Outcome struct {
	ID string
	taskerr.Envelope
}

// MarshalJSON renders the envelope with an extra id field when one is set
func (o Outcome) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(o.Envelope)
	if err != nil || o.ID == "" {
		return body, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	id, err := json.Marshal(o.ID)
	if err != nil {
		return nil, err
	}
	fields["id"] = id
	return json.Marshal(fields)
}

// Outcomes pairs envelopes with their tasks by position
func Outcomes(tasks []Task, envs []taskerr.Envelope) []Outcome {
	out := make([]Outcome, len(envs))
	for i, env := range envs {
		out[i].Envelope = env
		if i < len(tasks) {
			out[i].ID = tasks[i].ID
		}
	}
	return out
}
