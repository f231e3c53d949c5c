package types

// Model represents a local GGUF model discovered on disk.
type Model struct {
	// Stable identifier for the model.
	// example: qwen2.5-1.5b-instruct-q4_k_m.gguf
	ID string `json:"id" example:"qwen2.5-1.5b-instruct-q4_k_m.gguf"`
	// Human-friendly name.
	// example: qwen2.5-1.5b-instruct
	Name string `json:"name" example:"qwen2.5-1.5b-instruct"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/qwen2.5-1.5b-instruct-q4_k_m.gguf
	Path string `json:"path" example:"/home/user/models/qwen2.5-1.5b-instruct-q4_k_m.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant" example:"Q4_K_M"`
	// Optional family (e.g., llama, mistral, qwen).
	// example: qwen
	Family string `json:"family,omitempty" example:"qwen"`
	// File size in MB.
	// example: 1100
	SizeMB int `json:"size_mb,omitempty" example:"1100"`
}
