package dto

// NineBoxQuery selects a matrix scope and cache window.
type NineBoxQuery struct {
	Scope      string `form:"scope"`
	TTLMinutes int    `form:"ttl_minutes" validate:"omitempty,min=1"`
	Refresh    bool   `form:"refresh"`
}

// NineBoxExportQuery selects an export format for a scope.
type NineBoxExportQuery struct {
	Scope  string `form:"scope"`
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
