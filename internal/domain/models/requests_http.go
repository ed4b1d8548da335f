package models

// Requests for paper trading HTTP endpoints.

type SummaryRequest struct {
	UserID string `query:"user_id" json:"user_id" validate:"required"`
}

type PerformanceRequest struct {
	UserID string `query:"user_id" json:"user_id" validate:"required"`
	Days   int    `query:"days" json:"days" default:"7" validate:"gte=1,lte=365"`
	Weeks  int    `query:"weeks" json:"weeks" default:"4" validate:"gte=1,lte=104"`
}

type ResetRequest struct {
	UserID      string  `json:"user_id" validate:"required"`
	InitialCash float64 `json:"initial_cash" default:"1000000" validate:"gt=0"`
}

type RecommendationsRequest struct {
	TopN int `query:"top_n" json:"top_n" default:"5" validate:"gte=1,lte=50"`
}

type CandlesRequest struct {
	Market string `query:"market" json:"market" validate:"required,market"`
}

type StrategyDefaultsRequest struct {
	Mode string `query:"mode" json:"mode" default:"AUTO"`
}
