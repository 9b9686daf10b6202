package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

func (s *Server) registerReconcileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "startReconcile",
		Method:        http.MethodPost,
		Path:          "/api/v1/tags/reconcile",
		Summary:       "Reconcile asset tags",
		Description:   "Starts a bulk run that resolves every asset's raw tag names into tag references",
		Tags:          []string{"Reconcile"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   s.intentMiddlewares(),
	}, s.handleStartReconcile)

	huma.Register(s.api, huma.Operation{
		OperationID: "getReconcileOutcome",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/reconcile",
		Summary:     "Get reconcile outcome",
		Description: "Returns the success and failure flags of the last bulk run",
		Tags:        []string{"Reconcile"},
	}, s.handleGetReconcileOutcome)

	huma.Register(s.api, huma.Operation{
		OperationID:   "resetReconcileOutcome",
		Method:        http.MethodDelete,
		Path:          "/api/v1/tags/reconcile",
		Summary:       "Reset reconcile outcome",
		Description:   "Clears the success and failure flags of the last bulk run",
		Tags:          []string{"Reconcile"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleResetReconcileOutcome)
}

// ReconcileOutcomeOutput contains the bulk run flags.
type ReconcileOutcomeOutput struct {
	Body tagstore.Outcome
}

func (s *Server) handleStartReconcile(_ context.Context, _ *struct{}) (*IntentOutput, error) {
	return s.dispatch(tagstore.CheckAndCreateTagsStart{}), nil
}

func (s *Server) handleGetReconcileOutcome(_ context.Context, _ *struct{}) (*ReconcileOutcomeOutput, error) {
	return &ReconcileOutcomeOutput{Body: tagstore.OperationOutcome(s.store.State())}, nil
}

func (s *Server) handleResetReconcileOutcome(_ context.Context, _ *struct{}) (*IntentOutput, error) {
	return s.dispatch(tagstore.ResetTagsOperationState{}), nil
}
