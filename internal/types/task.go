package types

import "strings"

// TaskID identifies a unit of vision work. The set is closed: every valid
// value is listed in AllTasks.
type TaskID string

const (
	TaskDetection                    TaskID = "detection"
	TaskOpenVocabDetection           TaskID = "open_vocab_detection"
	TaskOCR                          TaskID = "ocr"
	TaskOCRWithRegion                TaskID = "ocr_with_region"
	TaskVisualPrompting              TaskID = "visual_prompting"
	TaskKeypoint                     TaskID = "keypoint"
	TaskCaption                      TaskID = "caption"
	TaskCaptionDetailed              TaskID = "caption_detailed"
	TaskCaptionMoreDetailed          TaskID = "caption_more_detailed"
	TaskCaptionGrounding             TaskID = "caption_grounding"
	TaskCaptionGroundingDetailed     TaskID = "caption_grounding_detailed"
	TaskCaptionGroundingMoreDetailed TaskID = "caption_grounding_more_detailed"
	TaskCaptionToPhraseGrounding     TaskID = "caption_to_phrase_grounding"
	TaskReferringSegmentation        TaskID = "referring_expression_segmentation"
	TaskRegionSegmentation           TaskID = "region_segmentation"
	TaskRegionCategory               TaskID = "region_category"
	TaskRegionDescription            TaskID = "region_description"
	TaskRegionProposal               TaskID = "region_proposal"
	TaskDenseRegionCaption           TaskID = "dense_region_caption"
)

// AllTasks lists every TaskID in catalog order.
var AllTasks = []TaskID{
	TaskDetection,
	TaskOpenVocabDetection,
	TaskOCR,
	TaskOCRWithRegion,
	TaskVisualPrompting,
	TaskKeypoint,
	TaskCaption,
	TaskCaptionDetailed,
	TaskCaptionMoreDetailed,
	TaskCaptionGrounding,
	TaskCaptionGroundingDetailed,
	TaskCaptionGroundingMoreDetailed,
	TaskCaptionToPhraseGrounding,
	TaskReferringSegmentation,
	TaskRegionSegmentation,
	TaskRegionCategory,
	TaskRegionDescription,
	TaskRegionProposal,
	TaskDenseRegionCaption,
}

// ParseTask matches s case-insensitively against AllTasks.
func ParseTask(s string) (TaskID, bool) {
	normalized := TaskID(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range AllTasks {
		if t == normalized {
			return t, true
		}
	}
	return "", false
}

// BackendID identifies an inference backend.
type BackendID string

const (
	BackendFlorence BackendID = "florence"
	BackendRexOmni  BackendID = "rexomni"
	BackendVLM      BackendID = "vlm"
)

var AllBackends = []BackendID{BackendFlorence, BackendRexOmni, BackendVLM}

// ParseBackend matches s case-insensitively against AllBackends.
func ParseBackend(s string) (BackendID, bool) {
	normalized := BackendID(strings.ToLower(strings.TrimSpace(s)))
	for _, b := range AllBackends {
		if b == normalized {
			return b, true
		}
	}
	return "", false
}

// Family is the coarse output shape of a task, used by the normalizer.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyDetection
	FamilySegmentation
	FamilyOCR
	FamilyCaption
	FamilyKeypoint
	FamilyGrounding
)

func (f Family) String() string {
	switch f {
	case FamilyDetection:
		return "detection"
	case FamilySegmentation:
		return "segmentation"
	case FamilyOCR:
		return "ocr"
	case FamilyCaption:
		return "caption"
	case FamilyKeypoint:
		return "keypoint"
	case FamilyGrounding:
		return "grounding"
	default:
		return "unknown"
	}
}

// InputField names an auxiliary request field a task may require.
type InputField string

const (
	FieldTextInput   InputField = "text_input"
	FieldCategories  InputField = "categories"
	FieldPromptBoxes InputField = "prompt_boxes"
)
