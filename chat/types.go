package chat

// Source is one retrieved passage cited alongside the answer. Sources are not
// deduplicated by file: two matching chunks of the same file appear twice.
type Source struct {
	SourceFile string  `json:"source_file"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// EventKind tags the answer stream protocol: exactly one Sources event first,
// zero or more Token events, exactly one Done event last.
type EventKind int

const (
	EventSources EventKind = iota
	EventToken
	EventDone
)

type Event struct {
	Kind    EventKind
	Sources []Source
	Token   string
}
