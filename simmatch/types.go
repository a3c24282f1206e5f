package simmatch

import "encoding/json"

// DefaultThreshold is the cutoff at or above which a pair is reported.
const DefaultThreshold float32 = 0.7

// Table is a parsed spreadsheet: a header row and the data rows beneath it.
type Table struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Record is one data row selected for matching.
type Record struct {
	// Row is the 1-based position of the row among the table's data rows.
	Row   int      `json:"row"`
	Text  string   `json:"text"`
	IDs   []string `json:"ids,omitempty"`
	// Cells is the whole cleaned row, aligned with Side.Header.
	Cells []string `json:"cells,omitempty"`
}

// TableSpec chooses which columns of a table take part in a comparison.
type TableSpec struct {
	Name       string   `json:"name" yaml:"name"`
	TextColumn string   `json:"textColumn" yaml:"textColumn"`
	IDColumns  []string `json:"idColumns" yaml:"idColumns"`
}

// Side is a table reduced to the records being compared.
type Side struct {
	Name       string   `json:"name"`
	Header     []string `json:"header,omitempty"`
	TextHeader string   `json:"textHeader"`
	IDHeaders  []string `json:"idHeaders,omitempty"`
	Records    []Record `json:"records"`
}

// Match pairs a left and a right record whose similarity reached the threshold.
type Match struct {
	Left  Record  `json:"left"`
	Right Record  `json:"right"`
	Score float32 `json:"score"`
}

// Result is the outcome of one comparison run.
type Result struct {
	Threshold float32     `json:"threshold"`
	Left      Side        `json:"left"`
	Right     Side        `json:"right"`
	Matrix    [][]float32 `json:"-"`
	Matches   []Match     `json:"matches"`
	Best      []Match     `json:"best"`
}

// Pairs reports how many pairs were scored.
func (r Result) Pairs() int {
	return len(r.Left.Records) * len(r.Right.Records)
}

// EmbedderConfig wraps the configuration for the embedding backends and cache.
type EmbedderConfig struct {
	Backend       string       `json:"backend" yaml:"backend"`
	OrtDLL        string       `json:"ortDll" yaml:"ortDll"`
	ModelPath     string       `json:"modelPath" yaml:"modelPath"`
	TokenizerPath string       `json:"tokenizerPath" yaml:"tokenizerPath"`
	MaxSeqLen     int          `json:"maxSeqLen" yaml:"maxSeqLen"`
	HiddenSize    int          `json:"hiddenSize" yaml:"hiddenSize"`
	CacheDir      string       `json:"cacheDir" yaml:"cacheDir"`
	ModelID       string       `json:"modelId" yaml:"modelId"`
	OpenAI        OpenAIConfig `json:"openai" yaml:"openai"`
	Redis         RedisConfig  `json:"redis" yaml:"redis"`
}

// OpenAIConfig configures the remote embedding backend.
type OpenAIConfig struct {
	BaseURL   string `json:"baseUrl" yaml:"baseUrl"`
	Model     string `json:"model" yaml:"model"`
	APIKey    string `json:"-" yaml:"-"`
	BatchSize int    `json:"batchSize" yaml:"batchSize"`
}

// RedisConfig enables the shared vector cache when Address is set.
type RedisConfig struct {
	Address    string `json:"address" yaml:"address"`
	Password   string `json:"-" yaml:"-"`
	DB         int    `json:"db" yaml:"db"`
	TTLSeconds int    `json:"ttlSeconds" yaml:"ttlSeconds"`
}

// OutputConfig controls exported files.
type OutputConfig struct {
	Dir       string `json:"dir" yaml:"dir"`
	SheetName string `json:"sheetName" yaml:"sheetName"`
}

// ServerConfig controls the web front-end.
type ServerConfig struct {
	Addr             string `json:"addr" yaml:"addr"`
	MaxUploadMB      int    `json:"maxUploadMb" yaml:"maxUploadMb"`
	ResultTTLMinutes int    `json:"resultTtlMinutes" yaml:"resultTtlMinutes"`
}

// Config aggregates runtime settings persisted to config.json.
type Config struct {
	Threshold float32          `json:"threshold" yaml:"threshold"`
	Left      TableSpec        `json:"left" yaml:"left"`
	Right     TableSpec        `json:"right" yaml:"right"`
	Columns   ColumnCandidates `json:"columns" yaml:"columns"`
	Embedder  EmbedderConfig   `json:"embedder" yaml:"embedder"`
	Output    OutputConfig     `json:"output" yaml:"output"`
	Server    ServerConfig     `json:"server" yaml:"server"`
}

// Clone creates a deep copy of the configuration so callers can mutate safely.
func (c Config) Clone() Config {
	buf, _ := json.Marshal(c)
	var out Config
	_ = json.Unmarshal(buf, &out)
	out.Embedder.OpenAI.APIKey = c.Embedder.OpenAI.APIKey
	out.Embedder.Redis.Password = c.Embedder.Redis.Password
	return out
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	c.Columns = c.Columns.withDefaults()
	if c.Embedder.Backend == "" {
		c.Embedder.Backend = BackendONNX
	}
	if c.Embedder.MaxSeqLen == 0 {
		c.Embedder.MaxSeqLen = 256
	}
	if c.Embedder.ModelPath == "" {
		c.Embedder.ModelPath = "./models/all-MiniLM-L6-v2/model.onnx"
	}
	if c.Embedder.TokenizerPath == "" {
		c.Embedder.TokenizerPath = "./models/all-MiniLM-L6-v2/tokenizer.json"
	}
	if c.Embedder.OpenAI.Model == "" {
		c.Embedder.OpenAI.Model = "text-embedding-3-small"
	}
	if c.Embedder.OpenAI.BatchSize <= 0 {
		c.Embedder.OpenAI.BatchSize = 256
	}
	if c.Embedder.Redis.TTLSeconds == 0 {
		c.Embedder.Redis.TTLSeconds = 7 * 24 * 3600
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	if c.Output.SheetName == "" {
		c.Output.SheetName = "Matches"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 32
	}
	if c.Server.ResultTTLMinutes <= 0 {
		c.Server.ResultTTLMinutes = 30
	}
}
