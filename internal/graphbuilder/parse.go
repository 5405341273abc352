package graphbuilder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNoJSON is returned when planner text contains no recognizable JSON
// array or object.
var ErrNoJSON = errors.New("graphbuilder: no JSON array or object found in planner output")

// plannerTaskSchema validates one decoded task object from planner output
// before it is trusted into a PlannerTask; it only checks the shape, not
// business rules (maxTasks, dependency resolution happen in builder.go).
const plannerTaskSchemaJSON = `{
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "description": {"type": "string"},
    "role": {"type": "string"},
    "priority": {"type": "integer"},
    "dependsOn": {"type": "array"},
    "requiredTools": {"type": "array", "items": {"type": "string"}},
    "checkpoint": {"type": "boolean"}
  },
  "required": ["description"]
}`

var plannerTaskSchema = mustCompileSchema(plannerTaskSchemaJSON)

func mustCompileSchema(schemaJSON string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("planner-task.json", strings.NewReader(schemaJSON)); err != nil {
		panic(err)
	}
	s, err := c.Compile("planner-task.json")
	if err != nil {
		panic(err)
	}
	return s
}

// ParsePlannerOutput extracts the first JSON array or object embedded in
// free-form planner text. An array is interpreted as the task list directly;
// an object must carry a "tasks" array. Every decoded task is validated
// against plannerTaskSchema before being accepted.
func ParsePlannerOutput(text string) (PlannerOutput, error) {
	start, end, isArray, ok := findJSONSpan(text)
	if !ok {
		return PlannerOutput{}, ErrNoJSON
	}
	raw := text[start:end]

	var rawTasks []json.RawMessage
	if isArray {
		if err := json.Unmarshal([]byte(raw), &rawTasks); err != nil {
			return PlannerOutput{}, fmt.Errorf("graphbuilder: decoding task array: %w", err)
		}
	} else {
		var obj struct {
			Tasks []json.RawMessage `json:"tasks"`
		}
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return PlannerOutput{}, fmt.Errorf("graphbuilder: decoding planner object: %w", err)
		}
		if obj.Tasks == nil {
			return PlannerOutput{}, errors.New("graphbuilder: planner object has no tasks array")
		}
		rawTasks = obj.Tasks
	}

	out := PlannerOutput{Tasks: make([]PlannerTask, 0, len(rawTasks))}
	for _, rt := range rawTasks {
		var generic any
		if err := json.Unmarshal(rt, &generic); err != nil {
			return PlannerOutput{}, fmt.Errorf("graphbuilder: decoding task: %w", err)
		}
		if err := plannerTaskSchema.Validate(generic); err != nil {
			return PlannerOutput{}, fmt.Errorf("graphbuilder: task failed schema validation: %w", err)
		}
		var pt PlannerTask
		if err := json.Unmarshal(rt, &pt); err != nil {
			return PlannerOutput{}, fmt.Errorf("graphbuilder: decoding task: %w", err)
		}
		out.Tasks = append(out.Tasks, pt)
	}
	return out, nil
}

// findJSONSpan scans text for the first top-level '[' or '{' and returns the
// byte span of its balanced closing bracket, tracking string/escape state so
// brackets inside string literals don't confuse the scan.
func findJSONSpan(text string) (start, end int, isArray, ok bool) {
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '[' && c != '{' {
			continue
		}
		open, close := byte('{'), byte('}')
		arr := false
		if c == '[' {
			open, close = '[', ']'
			arr = true
		}
		depth := 0
		inString := false
		escaped := false
		for j := i; j < len(text); j++ {
			ch := text[j]
			if inString {
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == '"':
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case open:
				depth++
			case close:
				depth--
				if depth == 0 {
					return i, j + 1, arr, true
				}
			}
		}
		// Unbalanced from this start; try the next candidate open bracket.
	}
	return 0, 0, false, false
}
