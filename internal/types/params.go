package types

import "strings"

// Box is an axis-aligned box in pixel coordinates: x1, y1, x2, y2.
type Box [4]float64

// Params carries the auxiliary inputs of a job.
type Params struct {
	TextInput    string   `json:"text_input,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	PromptBoxes  []Box    `json:"prompt_boxes,omitempty"`
	KeypointType string   `json:"keypoint_type,omitempty"`
	Visualize    bool     `json:"visualize"`
}

// Has reports whether field carries a usable value.
func (p Params) Has(field InputField) bool {
	switch field {
	case FieldTextInput:
		return strings.TrimSpace(p.TextInput) != ""
	case FieldCategories:
		for _, c := range p.Categories {
			if strings.TrimSpace(c) != "" {
				return true
			}
		}
		return false
	case FieldPromptBoxes:
		return len(p.PromptBoxes) > 0
	default:
		return false
	}
}

func (p Params) Clone() Params {
	cp := p
	if p.Categories != nil {
		cp.Categories = append([]string(nil), p.Categories...)
	}
	if p.PromptBoxes != nil {
		cp.PromptBoxes = append([]Box(nil), p.PromptBoxes...)
	}
	return cp
}
