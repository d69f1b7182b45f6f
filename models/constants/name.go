package constants

const (
	InternalName = "rss-notifier"
	ExternalName = "RSS Notifier"
	Version      = "1.0.0"
)
