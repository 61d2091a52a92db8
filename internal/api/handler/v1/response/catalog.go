package response

type CategoryUsageResponse struct {
	CategoryID uint  `json:"category_id"`
	Products   int64 `json:"products"`
	InUse      bool  `json:"in_use"`
}
