package intake

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/platform/fhir"
	"github.com/ehr/intake/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	g := api.Group("/intake")
	g.POST("/validate", h.Validate)
	g.POST("/field-states", h.FieldStates)
	g.POST("/sections/:section/visibility", h.SectionVisibility)
	g.POST("/sections/:section/rules", h.SectionRules)
	g.GET("/lint", h.Lint)

	// Form versions need a database.
	if h.svc.forms != nil {
		g.GET("/forms", h.ListForms)
		g.GET("/forms/:id", h.GetForm)
		g.POST("/forms", h.PublishForm)
		g.POST("/forms/:id/activate", h.ActivateForm)
	}

	fhirGroup.POST("/QuestionnaireResponse/$validate-intake", h.ValidateQuestionnaireResponseFHIR)
}

type validateRequest struct {
	Values                FormValues            `json:"values"`
	RenderedSectionCounts RenderedSectionCounts `json:"renderedSectionCounts,omitempty"`
}

type sectionRequest struct {
	Values FormValues `json:"values"`
	Index  *int       `json:"index,omitempty"`
}

type publishRequest struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
	Note       *string         `json:"note,omitempty"`
}

// httpError maps service errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrSectionNotFound), errors.Is(err, ErrFormNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSectionShape), errors.Is(err, ErrInvalidFormConfig):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrFormsUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// -- Evaluation Handlers --

func (h *Handler) Validate(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.Validate(c.Request().Context(), req.Values, req.RenderedSectionCounts)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) FieldStates(c echo.Context) error {
	var req sectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	states, err := h.svc.FieldStates(req.Values)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, states)
}

func (h *Handler) SectionVisibility(c echo.Context) error {
	var req sectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hidden, err := h.svc.SectionVisibility(c.Param("section"), req.Values, req.Index)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"hidden": hidden})
}

func (h *Handler) SectionRules(c echo.Context) error {
	var req sectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rules, err := h.svc.SectionRules(c.Param("section"), req.Values, req.Index)
	if err != nil {
		return httpError(err)
	}
	out := make(map[string]RuleSummary, len(rules))
	for k, r := range rules {
		out[k] = r.Summary()
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Lint(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Lint())
}

// -- Form Version Handlers --

func (h *Handler) PublishForm(c echo.Context) error {
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Definition) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "definition is required")
	}
	f, err := h.svc.PublishForm(c.Request().Context(), req.Name, req.Definition, req.Note)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) GetForm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	f, err := h.svc.GetForm(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) ListForms(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListForms(c.Request().Context(), c.QueryParam("name"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ActivateForm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	f, err := h.svc.ActivateForm(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

// -- FHIR Endpoints --

// ValidateQuestionnaireResponseFHIR handles
// POST /fhir/QuestionnaireResponse/$validate-intake.
func (h *Handler) ValidateQuestionnaireResponseFHIR(c echo.Context) error {
	var qr fhir.QuestionnaireResponse
	if err := c.Bind(&qr); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(
			fhir.IssueSeverityError, fhir.IssueTypeStructure, err.Error()))
	}
	answers, err := qr.Answers()
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(
			fhir.IssueSeverityError, fhir.IssueTypeStructure, err.Error()))
	}
	result, err := h.svc.Validate(c.Request().Context(), FormValues(answers), nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.NewOperationOutcome(
			fhir.IssueSeverityFatal, fhir.IssueTypeException, err.Error()))
	}
	return c.JSON(http.StatusOK, OutcomeFromResult(result))
}

// OutcomeFromResult renders field errors as an OperationOutcome, one issue
// per failing field in key order.
func OutcomeFromResult(result *ResolverResult) *fhir.OperationOutcome {
	b := fhir.NewOutcomeBuilder()
	keys := make([]string, 0, len(result.Errors))
	for k := range result.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fe := result.Errors[k]
		b.AddIssueWithLocation(fhir.IssueSeverityError, issueCode(fe.Type), fe.Message, k)
	}
	if b.Len() == 0 {
		b.AddIssue(fhir.IssueSeverityInformation, fhir.IssueTypeInformational, "All OK")
	}
	return b.Build()
}

func issueCode(t ErrorType) string {
	switch t {
	case ErrorRequired:
		return fhir.IssueTypeRequired
	case ErrorPattern:
		return fhir.IssueTypeValue
	case ErrorValidate:
		return fhir.IssueTypeBusinessRule
	}
	return fhir.IssueTypeInvalid
}
