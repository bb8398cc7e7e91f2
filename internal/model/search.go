package model

// SearchResult 表示一次检索命中的单条结果。
// Position 是分块在所属域分块表中的行号，与向量索引中的位置一一对应。
type SearchResult struct {
	TextContent string  `json:"textContent"`
	Similarity  float64 `json:"similarity"`
	Position    int     `json:"position"`
	Domain      Domain  `json:"domain"`
	Source      string  `json:"source,omitempty"`
}

// DomainStatus 描述单个知识域当前的索引状态，用于状态展示。
type DomainStatus struct {
	Domain         Domain   `json:"domain"`
	Available      bool     `json:"available"`
	FileCount      int      `json:"fileCount"`
	ProcessedFiles []string `json:"processedFiles"`
	Description    string   `json:"description"`
}
