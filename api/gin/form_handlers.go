package airformgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pilab-dev/airform/api"
	"github.com/pilab-dev/airform/domain"
	apierrors "github.com/pilab-dev/airform/errors"
	"github.com/pilab-dev/airform/internal/audit"
)

func (a *API) CreateFormHandler(c *gin.Context) {
	var req api.FormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("name, baseId and tableId are required"))
		return
	}

	form := &domain.Form{OwnerID: currentUserID(c)}
	req.ApplyTo(form)
	if err := a.forms.CreateForm(c.Request.Context(), form); err != nil {
		writeError(c, err)
		return
	}

	audit.Log(audit.ActionFormCreate, form.OwnerID, form.ID, "", true, nil)
	c.JSON(http.StatusCreated, form)
}

// ListFormsHandler lists the caller's forms, newest first.
func (a *API) ListFormsHandler(c *gin.Context) {
	forms, err := a.forms.ListFormsByOwner(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, forms)
}

// GetFormHandler is public: the form renderer loads definitions anonymously.
func (a *API) GetFormHandler(c *gin.Context) {
	form, err := a.forms.GetFormByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

func (a *API) UpdateFormHandler(c *gin.Context) {
	form, ok := a.ownedForm(c)
	if !ok {
		return
	}

	var req api.FormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("name, baseId and tableId are required"))
		return
	}
	req.ApplyTo(form)

	if err := a.forms.UpdateForm(c.Request.Context(), form); err != nil {
		writeError(c, err)
		return
	}

	audit.Log(audit.ActionFormUpdate, form.OwnerID, form.ID, "", true, nil)
	c.JSON(http.StatusOK, form)
}

// SubmitHandler accepts an anonymous submission and syncs it to Airtable.
func (a *API) SubmitHandler(c *gin.Context) {
	var req api.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("Body must be a JSON object with answers"))
		return
	}
	if req.Answers == nil {
		req.Answers = map[string]any{}
	}

	form, err := a.forms.GetFormByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	out, err := a.syncer.Submit(c.Request.Context(), form, req.Answers)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, api.NewSubmissionResponse(out.Submission))
}

// ListResponsesHandler lists the stored submissions of an owned form.
func (a *API) ListResponsesHandler(c *gin.Context) {
	form, ok := a.ownedForm(c)
	if !ok {
		return
	}

	submissions, err := a.submissions.ListSubmissionsByForm(c.Request.Context(), form.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]api.SubmissionResponse, 0, len(submissions))
	for _, s := range submissions {
		resp = append(resp, api.NewSubmissionResponse(s))
	}
	c.JSON(http.StatusOK, resp)
}

// ownedForm loads the :id form and checks that the caller owns it. It
// writes the error response itself.
func (a *API) ownedForm(c *gin.Context) (*domain.Form, bool) {
	form, err := a.forms.GetFormByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if form.OwnerID != currentUserID(c) {
		c.JSON(http.StatusForbidden, apierrors.NewForbidden("You do not own this form"))
		return nil, false
	}
	return form, true
}
