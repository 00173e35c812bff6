// Package catalog holds the static table of tasks and backends: which
// auxiliary inputs each task needs, which backends can serve it, and which
// backend serves it by default.
package catalog

import (
	"fmt"

	"github.com/samber/lo"

	"vision-gateway/internal/types"
)

type TaskDescriptor struct {
	ID             types.TaskID       `json:"id"`
	Family         types.Family       `json:"-"`
	RequiredInputs []types.InputField `json:"required_inputs"`
	Backends       []types.BackendID  `json:"backends"`
	Default        types.BackendID    `json:"default_backend"`
}

type BackendDescriptor struct {
	ID          types.BackendID `json:"id"`
	Description string          `json:"description"`
	Tasks       []types.TaskID  `json:"tasks"`
}

type taskSpec struct {
	family   types.Family
	required []types.InputField
	fallback types.BackendID
}

var taskTable = map[types.TaskID]taskSpec{
	types.TaskDetection:                    {types.FamilyDetection, nil, types.BackendFlorence},
	types.TaskOpenVocabDetection:           {types.FamilyDetection, []types.InputField{types.FieldCategories}, types.BackendFlorence},
	types.TaskOCR:                          {types.FamilyOCR, nil, types.BackendRexOmni},
	types.TaskOCRWithRegion:                {types.FamilyOCR, nil, types.BackendFlorence},
	types.TaskVisualPrompting:              {types.FamilyDetection, []types.InputField{types.FieldPromptBoxes}, types.BackendRexOmni},
	types.TaskKeypoint:                     {types.FamilyKeypoint, nil, types.BackendRexOmni},
	types.TaskCaption:                      {types.FamilyCaption, []types.InputField{types.FieldTextInput}, types.BackendFlorence},
	types.TaskCaptionDetailed:              {types.FamilyCaption, []types.InputField{types.FieldTextInput}, types.BackendFlorence},
	types.TaskCaptionMoreDetailed:          {types.FamilyCaption, []types.InputField{types.FieldTextInput}, types.BackendFlorence},
	types.TaskCaptionGrounding:             {types.FamilyGrounding, []types.InputField{types.FieldTextInput}, types.BackendFlorence},
	types.TaskCaptionGroundingDetailed:     {types.FamilyGrounding, []types.InputField{types.FieldTextInput}, types.BackendFlorence},
	types.TaskCaptionGroundingMoreDetailed: {types.FamilyGrounding, []types.InputField{types.FieldTextInput}, types.BackendFlorence},
	types.TaskCaptionToPhraseGrounding:     {types.FamilyDetection, []types.InputField{types.FieldTextInput}, types.BackendFlorence},
	types.TaskReferringSegmentation:        {types.FamilySegmentation, []types.InputField{types.FieldTextInput}, types.BackendFlorence},
	types.TaskRegionSegmentation:           {types.FamilySegmentation, nil, types.BackendFlorence},
	types.TaskRegionCategory:               {types.FamilyCaption, []types.InputField{types.FieldTextInput}, types.BackendFlorence},
	types.TaskRegionDescription:            {types.FamilyCaption, []types.InputField{types.FieldTextInput}, types.BackendFlorence},
	types.TaskRegionProposal:               {types.FamilyDetection, nil, types.BackendFlorence},
	types.TaskDenseRegionCaption:           {types.FamilyDetection, nil, types.BackendFlorence},
}

var backendTable = []BackendDescriptor{
	{
		ID:          types.BackendFlorence,
		Description: "Florence-2 sidecar: captioning, grounding, segmentation, region and dense tasks",
		Tasks: []types.TaskID{
			types.TaskDetection,
			types.TaskOpenVocabDetection,
			types.TaskOCR,
			types.TaskOCRWithRegion,
			types.TaskCaption,
			types.TaskCaptionDetailed,
			types.TaskCaptionMoreDetailed,
			types.TaskCaptionGrounding,
			types.TaskCaptionGroundingDetailed,
			types.TaskCaptionGroundingMoreDetailed,
			types.TaskCaptionToPhraseGrounding,
			types.TaskReferringSegmentation,
			types.TaskRegionSegmentation,
			types.TaskRegionCategory,
			types.TaskRegionDescription,
			types.TaskRegionProposal,
			types.TaskDenseRegionCaption,
		},
	},
	{
		ID:          types.BackendRexOmni,
		Description: "Rex-Omni sidecar: detection, OCR, visual prompting and keypoints",
		Tasks: []types.TaskID{
			types.TaskDetection,
			types.TaskOCR,
			types.TaskVisualPrompting,
			types.TaskKeypoint,
		},
	},
	{
		ID:          types.BackendVLM,
		Description: "OpenAI-compatible vision LLM: captions and open-vocabulary detection",
		Tasks: []types.TaskID{
			types.TaskOpenVocabDetection,
			types.TaskCaption,
			types.TaskCaptionDetailed,
			types.TaskCaptionMoreDetailed,
		},
	},
}

// Catalog is immutable after New returns and safe for concurrent use.
type Catalog struct {
	tasks    map[types.TaskID]TaskDescriptor
	backends map[types.BackendID]BackendDescriptor
}

// New builds the catalog from the static tables and checks that it is
// exhaustive and self-consistent.
func New() (*Catalog, error) {
	return build(taskTable, backendTable)
}

// MustNew is New for process start, where a broken table is a programming error.
func MustNew() *Catalog {
	c, err := New()
	if err != nil {
		panic(err)
	}
	return c
}

func build(tasks map[types.TaskID]taskSpec, backends []BackendDescriptor) (*Catalog, error) {
	c := &Catalog{
		tasks:    make(map[types.TaskID]TaskDescriptor, len(tasks)),
		backends: make(map[types.BackendID]BackendDescriptor, len(backends)),
	}

	for _, b := range backends {
		if !lo.Contains(types.AllBackends, b.ID) {
			return nil, fmt.Errorf("catalog: backend %q is not a known backend id", b.ID)
		}
		for _, t := range b.Tasks {
			if _, ok := tasks[t]; !ok {
				return nil, fmt.Errorf("catalog: backend %q lists unknown task %q", b.ID, t)
			}
		}
		b.Tasks = append([]types.TaskID(nil), b.Tasks...)
		c.backends[b.ID] = b
	}
	for _, id := range types.AllBackends {
		if _, ok := c.backends[id]; !ok {
			return nil, fmt.Errorf("catalog: backend %q has no descriptor", id)
		}
	}

	for _, id := range types.AllTasks {
		spec, ok := tasks[id]
		if !ok {
			return nil, fmt.Errorf("catalog: task %q has no descriptor", id)
		}
		serving := lo.FilterMap(types.AllBackends, func(b types.BackendID, _ int) (types.BackendID, bool) {
			return b, lo.Contains(c.backends[b].Tasks, id)
		})
		if spec.fallback != "" && !lo.Contains(serving, spec.fallback) {
			return nil, fmt.Errorf("catalog: default backend %q does not support task %q", spec.fallback, id)
		}
		c.tasks[id] = TaskDescriptor{
			ID:             id,
			Family:         spec.family,
			RequiredInputs: append([]types.InputField{}, spec.required...),
			Backends:       serving,
			Default:        spec.fallback,
		}
	}
	return c, nil
}

func (c *Catalog) Task(id types.TaskID) (TaskDescriptor, bool) {
	d, ok := c.tasks[id]
	return d, ok
}

func (c *Catalog) Backend(id types.BackendID) (BackendDescriptor, bool) {
	d, ok := c.backends[id]
	return d, ok
}

// Tasks returns every task descriptor in catalog order.
func (c *Catalog) Tasks() []TaskDescriptor {
	return lo.Map(types.AllTasks, func(id types.TaskID, _ int) TaskDescriptor {
		return c.tasks[id]
	})
}

// Backends returns every backend descriptor in catalog order.
func (c *Catalog) Backends() []BackendDescriptor {
	return lo.Map(types.AllBackends, func(id types.BackendID, _ int) BackendDescriptor {
		return c.backends[id]
	})
}

func (c *Catalog) Supports(backend types.BackendID, task types.TaskID) bool {
	d, ok := c.backends[backend]
	return ok && lo.Contains(d.Tasks, task)
}

// MissingInputs returns the required fields of task that params leaves empty.
func (c *Catalog) MissingInputs(task types.TaskID, params types.Params) []types.InputField {
	d, ok := c.tasks[task]
	if !ok {
		return nil
	}
	return lo.Filter(d.RequiredInputs, func(f types.InputField, _ int) bool {
		return !params.Has(f)
	})
}

// FamilyOf classifies task by identifier alone. Unknown ids map to
// FamilyUnknown.
func FamilyOf(task types.TaskID) types.Family {
	if spec, ok := taskTable[task]; ok {
		return spec.family
	}
	return types.FamilyUnknown
}
