package fcfg

// Subscriptions extracts the topic of every entry under /values: each
// entry is a nested block carrying at least a "topic" leaf.
func Subscriptions(root *Node) []string {
	values, ok := root.Locate("/values")
	if !ok {
		return nil
	}
	var topics []string
	for _, entry := range values.Children() {
		if topic, ok := entry.Child("topic"); ok && topic.Value != "" {
			topics = append(topics, topic.Value)
		}
	}
	return topics
}
