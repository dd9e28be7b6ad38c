package dto

// Review bridge DTOs

type StartAnalysisRequest struct {
	Message string `json:"message" validate:"required"`
}

type DecisionRequest struct {
	Index    int    `json:"index" validate:"gte=0"`
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// EditRequest carries the reviewer's replacement arguments as raw JSON text.
type EditRequest struct {
	Index     int    `json:"index" validate:"gte=0"`
	Arguments string `json:"arguments" validate:"required"`
}

type SelectFileRequest struct {
	Path string `json:"path" validate:"required"`
}

type PageImageParams struct {
	DocID int `params:"id" validate:"min=1"`
	Page  int `params:"page" validate:"min=1"`
}

type AuditHistoryQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=200"`
}
