package kafka

// TopicPrefix namespaces every storefront topic.
const TopicPrefix = "storefront"

// Topic names the topic for action events of domain, e.g. storefront.cart.updated.
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}
