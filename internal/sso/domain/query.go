package domain

// Page is the mandatory window of a listing query. Both values are
// caller-supplied and not re-validated here.
type Page struct {
	Offset int
	Limit  int
}

// Sort selects one column out of a view's fixed ordered column list by
// ordinal. An out-of-range ordinal leaves the view in storage-defined order.
type Sort struct {
	Column     int
	Descending bool
}

// TokenFilter holds the optional filters of the active-token listing view.
// Blank fields add no constraint. Username and ClientID match by substring,
// SourceAddress by exact equality.
type TokenFilter struct {
	Username      string
	ClientID      string
	SourceAddress string
}

// TokenQuery is the full request shape for the active-token listing view.
//
// Sortable columns, by ordinal: user_name, client_id, ip_address, login_at.
type TokenQuery struct {
	Filter TokenFilter
	Sort   *Sort
	Page   Page
}

// HistoryFilter holds the optional filters of the session history views.
// LoggedOut filters by exact flag value when non-nil; the string fields
// match by substring. The field a view fixes (user or client) is ignored.
type HistoryFilter struct {
	Username      string
	ClientID      string
	SourceAddress string
	LoggedOut     *bool
}

// HistoryQuery is the full request shape for the session history views.
//
// Sortable columns, by ordinal: user_name, client_id, ip_address, login_at,
// is_logout, logout_at, logout_by.
type HistoryQuery struct {
	Filter HistoryFilter
	Sort   *Sort
	Page   Page
}
