package web

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/JonMunkholm/schedimport/internal/core"
)

var etagPattern = regexp.MustCompile(`^\d{1,18}$`)

// columnSelectionRequest is a column picked by the client.
type columnSelectionRequest struct {
	Name      string `json:"name"`
	FieldType string `json:"fieldType"`
}

func (c columnSelectionRequest) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&c.FieldType, validation.Length(0, 100)),
	)
}

func (c *columnSelectionRequest) selection() *core.ColumnSelection {
	if c == nil {
		return nil
	}
	return &core.ColumnSelection{Name: strings.TrimSpace(c.Name), FieldType: strings.TrimSpace(c.FieldType)}
}

// analyzeRequest is the body of the analyze endpoint.
type analyzeRequest struct {
	ReadWorkAreasHierarchically bool                    `json:"readWorkAreasHierarchically"`
	CraftColumn                 *columnSelectionRequest `json:"craftColumn"`
	WorkAreaColumn              *columnSelectionRequest `json:"workAreaColumn"`
}

func (r analyzeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CraftColumn),
		validation.Field(&r.WorkAreaColumn),
	)
}

func (r analyzeRequest) toCore() core.AnalyzeRequest {
	return core.AnalyzeRequest{
		ReadWorkAreasHierarchically: r.ReadWorkAreasHierarchically,
		CraftColumn:                 r.CraftColumn.selection(),
		WorkAreaColumn:              r.WorkAreaColumn.selection(),
	}
}

// uuidParam parses a UUID path parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", errInvalidID, name)
	}
	return id, nil
}

// ifMatch reads the import version from the If-Match header. Quoted and weak
// forms are accepted.
func ifMatch(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		return 0, errMissingETag
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)

	err := validation.Validate(raw, validation.Match(etagPattern).Error("must be a non-negative version number"))
	if err != nil {
		return 0, validation.Errors{"If-Match": err}
	}
	return strconv.ParseInt(raw, 10, 64)
}

// etag formats a version as a strong entity tag.
func etag(version int64) string {
	return strconv.Quote(strconv.FormatInt(version, 10))
}
