package redis

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "beacon"

// keyspace builds the Redis keys for one prefix.
//
//	<prefix>:service:<name>   JSON descriptor
//	<prefix>:services:order   ZSET of names, scored by insertion sequence
//	<prefix>:services:seq     INCR counter feeding the ZSET scores
type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return keyspace{prefix: prefix}
}

// service returns the key holding a descriptor.
func (k keyspace) service(name string) string {
	return k.prefix + ":service:" + name
}

// order returns the key of the insertion-order sorted set.
func (k keyspace) order() string {
	return k.prefix + ":services:order"
}

// seq returns the key of the insertion counter.
func (k keyspace) seq() string {
	return k.prefix + ":services:seq"
}

// pattern matches every key of the keyspace (SCAN).
func (k keyspace) pattern() string {
	return k.prefix + ":*"
}

