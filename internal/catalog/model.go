package catalog

// Country groups the banks users can pay into.
type Country struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Bank is a payment destination. RequisitesText, when configured, is handed
// to users automatically.
type Bank struct {
	ID             int64  `json:"id"`
	CountryID      int64  `json:"country_id"`
	DisplayName    string `json:"display_name"`
	RequisitesText string `json:"requisites_text"`
	IsActive       bool   `json:"is_active"`
}
