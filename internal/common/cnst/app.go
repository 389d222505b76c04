package cnst

const (
	AppName     = "janus"
	CommandName = "janus"
)

// JanusYaml is the default configuration file name
const JanusYaml = "janus.yaml"

const (
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
	RedisClusterTypeSingle   = "single"
)
