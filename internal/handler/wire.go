package handler

import (
	"github.com/google/wire"
)

// ProviderSet is the Wire provider set for the HTTP routes of the
// serve command. Ops is built per command since its health checker
// differs.
var ProviderSet = wire.NewSet(NewWatchHandler, NewAPIProxy)
