// Package events implements the pub/sub event bus (spec.md §4.3): a closed
// set of topics, bit-exact JSON payload schemas, and two transports — an
// in-process fan-out for tests and colocated subscribers, and a Redis
// pub/sub transport for the default multi-process deployment. Grounded on
// itskum47-FluxForge's control_plane/streaming package for the abstract
// Publisher/Subscriber shape, and on original_source/rpi/lib/eventbus.py for
// the topic/payload contract this replaces (the ZeroMQ flavor there is not
// ported — spec.md §9 Open Question #1 names the key/value broker as the
// design target).
package events

// Topic is the closed set of event bus topics (spec.md §3).
type Topic string

const (
	TopicDHTReading      Topic = "dht.reading"
	TopicPicoReading     Topic = "pico.reading"
	TopicAlert           Topic = "alert"
	TopicHumidifierState Topic = "humidifier.state"
)
