// Package memory implements the Memory/Transcript component (§4.C):
// an append-only ordered log of Steps that renders into a provider-neutral
// message list for the LLM.
package memory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadirpekel/agentrt/message"
)

// Kind discriminates which variant a Step holds.
type Kind string

const (
	KindTask     Kind = "task"
	KindPlanning Kind = "planning"
	KindAction   Kind = "action"
	KindFinal    Kind = "final"
)

// TaskStep is the initial user input that opens a run.
type TaskStep struct {
	Task   string
	Images []message.ImageContent
}

// PlanningStep is an optional model-produced plan.
type PlanningStep struct {
	Plan string
}

// ActionStep is one model turn that (optionally) invoked tools.
type ActionStep struct {
	StepNumber   int
	ModelMessage *message.Message
	ToolCalls    []message.ToolCall
	ToolResults  []message.ToolResult
	Observations string
	Err          string
	Usage        *message.Usage
	Duration     time.Duration
}

// FinalStep is the terminal answer of a successful run.
type FinalStep struct {
	Answer json.RawMessage
	Raw    string
}

// Step is a tagged variant over {Task,Planning,Action,Final}. Exactly one
// of the pointer fields matching Kind is non-nil.
type Step struct {
	Kind     Kind
	Task     *TaskStep
	Planning *PlanningStep
	Action   *ActionStep
	Final    *FinalStep
}

// NewTaskStep wraps a TaskStep.
func NewTaskStep(s TaskStep) Step { return Step{Kind: KindTask, Task: &s} }

// NewPlanningStep wraps a PlanningStep.
func NewPlanningStep(s PlanningStep) Step { return Step{Kind: KindPlanning, Planning: &s} }

// NewActionStep wraps an ActionStep.
func NewActionStep(s ActionStep) Step { return Step{Kind: KindAction, Action: &s} }

// NewFinalStep wraps a FinalStep.
func NewFinalStep(s FinalStep) Step { return Step{Kind: KindFinal, Final: &s} }

// MarshalJSON renders the step as a flat `{"type": "...", ...fields}` object,
// so external persistence (§6) sees one tagged object per step rather than
// this package's internal pointer-union representation.
func (s Step) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindTask:
		return json.Marshal(struct {
			Type string `json:"type"`
			*TaskStep
		}{Type: string(KindTask), TaskStep: s.Task})
	case KindPlanning:
		return json.Marshal(struct {
			Type string `json:"type"`
			*PlanningStep
		}{Type: string(KindPlanning), PlanningStep: s.Planning})
	case KindAction:
		return json.Marshal(struct {
			Type string `json:"type"`
			*ActionStep
		}{Type: string(KindAction), ActionStep: s.Action})
	case KindFinal:
		return json.Marshal(struct {
			Type string `json:"type"`
			*FinalStep
		}{Type: string(KindFinal), FinalStep: s.Final})
	default:
		return nil, fmt.Errorf("memory: step has unknown kind %q", s.Kind)
	}
}

// UnmarshalJSON restores a Step from its tagged JSON form.
func (s *Step) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	switch Kind(head.Type) {
	case KindTask:
		var v TaskStep
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = NewTaskStep(v)
	case KindPlanning:
		var v PlanningStep
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = NewPlanningStep(v)
	case KindAction:
		var v ActionStep
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = NewActionStep(v)
	case KindFinal:
		var v FinalStep
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = NewFinalStep(v)
	default:
		return fmt.Errorf("memory: unknown step type %q", head.Type)
	}
	return nil
}
