// Package config holds the persisted reaction settings.
package config

// SoundCount is the size of the fixed sound table.
const SoundCount = 3

// Reaction is the operator's configured response to a new WHEA error.
// Every *Enabled flag gates its own fields; a disabled group is inert even
// when its fields still hold old values.
type Reaction struct {
	MessageEnabled       bool   `yaml:"message_enabled" json:"message_enabled"`
	MessageCustomEnabled bool   `yaml:"message_custom_enabled" json:"message_custom_enabled"`
	MessageText          string `yaml:"message_text" json:"message_text"`

	AudioEnabled       bool `yaml:"audio_enabled" json:"audio_enabled"`
	AudioSelectedIndex *int `yaml:"audio_selected_index" json:"audio_selected_index"` // nil: system beep

	ExecuteEnabled bool   `yaml:"execute_enabled" json:"execute_enabled"`
	ExecutePath    string `yaml:"execute_path" json:"execute_path"`
	ExecuteArgs    string `yaml:"execute_args" json:"execute_args"`
}

// Normalize drops an audio index outside the sound table.
func (r *Reaction) Normalize() {
	if r.AudioSelectedIndex != nil && (*r.AudioSelectedIndex < 0 || *r.AudioSelectedIndex >= SoundCount) {
		r.AudioSelectedIndex = nil
	}
}

// Clone returns a deep copy; the index pointer is not shared.
func (r Reaction) Clone() Reaction {
	if r.AudioSelectedIndex != nil {
		idx := *r.AudioSelectedIndex
		r.AudioSelectedIndex = &idx
	}
	return r
}

// Index is a helper for building configs with a selected sound.
func Index(i int) *int { return &i }
