package endpoint

// Record is a single data record as key-value pairs.
type Record = map[string]any

// Iterator provides streaming access to records.
type Iterator[T any] interface {
	// Next advances to the next record. Returns false when done or on error.
	Next() bool

	// Value returns the current record. Only valid after Next returns true.
	Value() T

	Err() error
	Close() error
}

// SliceIterator serves an in-memory slice through the Iterator contract.
// A positive Limit stops iteration early.
type SliceIterator struct {
	Records []Record
	Limit   int
	pos     int
}

// NewSliceIterator wraps records.
func NewSliceIterator(records []Record, limit int) *SliceIterator {
	return &SliceIterator{Records: records, Limit: limit}
}

func (it *SliceIterator) Next() bool {
	if it.Limit > 0 && it.pos >= it.Limit {
		return false
	}
	if it.pos >= len(it.Records) {
		return false
	}
	it.pos++
	return true
}

func (it *SliceIterator) Value() Record {
	if it.pos == 0 {
		return nil
	}
	return it.Records[it.pos-1]
}

func (it *SliceIterator) Err() error   { return nil }
func (it *SliceIterator) Close() error { return nil }

// Collect drains an iterator and closes it.
func Collect(it Iterator[Record]) ([]Record, error) {
	defer it.Close()
	var out []Record
	for it.Next() {
		out = append(out, it.Value())
	}
	return out, it.Err()
}

// --- Validation ---

type ValidationResult struct {
	Valid           bool
	Message         string
	DetectedVersion string
}

// --- Capabilities ---

type Capabilities struct {
	SupportsFull     bool
	SupportsPreview  bool
	SupportsMetadata bool
	SupportsWrite    bool
	SupportsUpsert   bool
	DefaultFetchSize int
}

// --- Datasets ---

type Dataset struct {
	ID          string
	Name        string
	Kind        string // "object", "custom_object"
	Queryable   bool
	Writable    bool
	PrimaryKeys []string
}

type Schema struct {
	Fields []*FieldDefinition
}

type FieldDefinition struct {
	Name       string
	Label      string
	DataType   string
	Nullable   bool
	Length     int
	Precision  int
	Scale      int
	Position   int
	Updatable  bool
	ExternalID bool
}

// --- Read ---

type ReadRequest struct {
	DatasetID string
	// Query overrides the default SELECT built from the dataset schema.
	Query string
	Limit int64
}

// --- Write ---

type WriteRequest struct {
	DatasetID string
	Mode      string // "upsert"
	// ExternalIDField names the field matched on upsert. Defaults to "Id".
	ExternalIDField string
	Records         []Record
}

type WriteResult struct {
	RowsWritten int64
	RowsFailed  int64
	Details     []Record
}

// --- Actions ---

type ActionDescriptor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"` // "query", "describe", "execute"
	RequiresAuth bool     `json:"requiresAuth"`
	Tags         []string `json:"tags,omitempty"`
}

type ActionSchema struct {
	ActionID     string
	InputFields  []*ActionField
	OutputFields []*ActionField
}

type ActionField struct {
	Name        string
	Label       string
	DataType    string
	Required    bool
	Default     any
	Description string
	Enum        []string
}

type ActionRequest struct {
	ActionID   string
	Parameters map[string]any
	DryRun     bool
}

type ActionResult struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Errors   []ActionError  `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

type ActionError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}
