package domain

// VoiceOption describes one selectable narration voice.
type VoiceOption struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultNarratorVoice is the global narrator voice for new projects.
const DefaultNarratorVoice = "Zephyr"

// VoicePalette is the fixed set of voices assignable to characters and
// the global narrator. Index order drives round-robin default assignment.
var VoicePalette = []VoiceOption{
	{Name: "Puck", Description: "Female, energetic and youthful"},
	{Name: "Zephyr", Description: "Male, friendly and clear"},
	{Name: "Kore", Description: "Female, neutral and professional"},
	{Name: "Charon", Description: "Male, deep and epic"},
	{Name: "Fenrir", Description: "Male, low and mysterious"},
	{Name: "Achernar", Description: "Male, calm and mature"},
	{Name: "Alnilam", Description: "Male, resonant and deep"},
	{Name: "Callirrhoe", Description: "Female, soft and melodic"},
	{Name: "Gacrux", Description: "Male, authoritative and seasoned"},
	{Name: "Sadachbia", Description: "Female, warm and conversational"},
	{Name: "Vindemiatrix", Description: "Female, elegant and refined"},
	{Name: "Zubenelgenubi", Description: "Male, unique and distinctive"},
}

// DefaultVoiceFor returns the palette voice for the i-th identified
// character, wrapping around when the roster is larger than the palette.
func DefaultVoiceFor(i int) string {
	if i < 0 {
		i = -i
	}
	return VoicePalette[i%len(VoicePalette)].Name
}

// IsKnownVoice reports whether name belongs to the palette.
func IsKnownVoice(name string) bool {
	for _, voice := range VoicePalette {
		if voice.Name == name {
			return true
		}
	}
	return false
}
