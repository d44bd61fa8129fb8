package usecases

const (
	topicFeedRecord = "feed/record"
	topicFeedNotice = "feed/notice"
)

// Per-code events are published on stockTopicPrefix + code, matching
// the topic names the browser clients subscribe to.
const stockTopicPrefix = "stock_"
