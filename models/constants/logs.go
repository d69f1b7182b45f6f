package constants

import "github.com/rs/zerolog"

const (
	LogFileName       = "fileName"
	LogSourceID       = "sourceID"
	LogSourceLink     = "sourceLink"
	LogSourceTitle    = "sourceTitle"
	LogItemGUID       = "itemGUID"
	LogItemNumber     = "itemNumber"
	LogChatID         = "chatID"
	LogUserName       = "username"
	LogCommand        = "cmd"
	LogCycleChecked   = "sourcesChecked"
	LogCycleFailed    = "sourcesFailed"
	LogCycleSkipped   = "sourcesSkipped"
	LogCycleDelivered = "itemsDelivered"
	LogLevelFallback  = zerolog.InfoLevel
)
