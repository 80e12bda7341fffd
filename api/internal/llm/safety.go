package llm

type HarmCategory string

const (
	HarmHarassment       HarmCategory = "harassment"
	HarmHateSpeech       HarmCategory = "hate_speech"
	HarmSexuallyExplicit HarmCategory = "sexually_explicit"
	HarmDangerousContent HarmCategory = "dangerous_content"
)

type HarmThreshold string

const (
	BlockNone           HarmThreshold = "block_none"
	BlockOnlyHigh       HarmThreshold = "block_only_high"
	BlockMediumAndAbove HarmThreshold = "block_medium_and_above"
	BlockLowAndAbove    HarmThreshold = "block_low_and_above"
)

type SafetySetting struct {
	Category  HarmCategory  `json:"category" yaml:"category"`
	Threshold HarmThreshold `json:"threshold" yaml:"threshold"`
}

// DefaultSafety blocks only high-probability harm in every category.
var DefaultSafety = []SafetySetting{
	{Category: HarmHarassment, Threshold: BlockOnlyHigh},
	{Category: HarmHateSpeech, Threshold: BlockOnlyHigh},
	{Category: HarmSexuallyExplicit, Threshold: BlockOnlyHigh},
	{Category: HarmDangerousContent, Threshold: BlockOnlyHigh},
}

// MergeSafety applies overrides on top of DefaultSafety, one entry per category.
func MergeSafety(overrides []SafetySetting) []SafetySetting {
	out := make([]SafetySetting, len(DefaultSafety))
	copy(out, DefaultSafety)
	for _, o := range overrides {
		replaced := false
		for i := range out {
			if out[i].Category == o.Category {
				out[i].Threshold = o.Threshold
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}

func (c HarmCategory) Valid() bool {
	switch c {
	case HarmHarassment, HarmHateSpeech, HarmSexuallyExplicit, HarmDangerousContent:
		return true
	}
	return false
}

func (t HarmThreshold) Valid() bool {
	switch t {
	case BlockNone, BlockOnlyHigh, BlockMediumAndAbove, BlockLowAndAbove:
		return true
	}
	return false
}
