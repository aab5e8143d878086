package runsearch

import "github.com/ashita-ai/runsearch/internal/model"

// Public aliases of the run and search types. They are the same types the
// internal packages use, so values pass through without conversion.
type (
	Run                = model.Run
	RunInfo            = model.RunInfo
	RunData            = model.RunData
	RunTag             = model.RunTag
	Metric             = model.Metric
	Param              = model.Param
	LifecycleStage     = model.LifecycleStage
	RunStatus          = model.RunStatus
	ViewType           = model.ViewType
	SearchRequest      = model.SearchRequest
	SearchResult       = model.SearchResult
	SearchQuery        = model.SearchQuery
	SearchRunsResponse = model.SearchRunsResponse
	Error              = model.Error
	ErrorKind          = model.ErrorKind
)

// ParentRunTagKey is the tag whose value names a run's parent.
const ParentRunTagKey = model.ParentRunTagKey

const (
	ViewActiveOnly  = model.ViewActiveOnly
	ViewDeletedOnly = model.ViewDeletedOnly
	ViewAll         = model.ViewAll
)

const (
	KindUnknown  = model.KindUnknown
	KindService  = model.KindService
	KindNotFound = model.KindNotFound
)

// KindOf returns the classification of an error returned by this package.
func KindOf(err error) ErrorKind { return model.KindOf(err) }

// IsNotFound reports whether err signals a run that does not exist.
func IsNotFound(err error) bool { return model.IsNotFound(err) }
