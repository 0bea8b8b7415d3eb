package models

// AnalysisRequest starts a new analysis workflow.
// Validated with go-playground/validator before the workflow is created.
type AnalysisRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=120"`
	Ticker        string `json:"ticker" validate:"omitempty,max=12"`
	StrategyFocus string `json:"strategy_focus" validate:"required,min=1,max=120"`
}

// WorkflowStartResponse is the reply to a successful analyze request
type WorkflowStartResponse struct {
	WorkflowID string `json:"workflow_id"`
}

// TickerMatch is one result of a company name search
type TickerMatch struct {
	Ticker      string `json:"ticker"`
	CompanyName string `json:"company_name"`
}
